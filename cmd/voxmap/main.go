package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/chzyer/readline"

	"github.com/VoxMapDB/voxmap/pkg/common/log"
	"github.com/VoxMapDB/voxmap/pkg/coords"
	"github.com/VoxMapDB/voxmap/pkg/manip"
	"github.com/VoxMapDB/voxmap/pkg/mapblock"
	"github.com/VoxMapDB/voxmap/pkg/world"
)

// Command completer for readline
var completer = readline.NewPrefixCompleter(
	readline.PcItem(".help"),
	readline.PcItem(".open"),
	readline.PcItem(".close"),
	readline.PcItem(".exit"),
	readline.PcItem(".stats"),
	readline.PcItem("GET"),
	readline.PcItem("SET"),
	readline.PcItem("PARAM1"),
	readline.PcItem("PARAM2"),
	readline.PcItem("COMMIT"),
	readline.PcItem("BLOCKS"),
	readline.PcItem("CACHE"),
)

const helpText = `
voxmap - A voxel world map inspection and editing shell.

Usage:
  voxmap [options] [world_path]    - Start with an optional world directory

Options:
  -debug                  - Enable debug logging

Commands (interactive mode only):
  .help                   - Show this help message
  .open PATH              - Open a world directory at PATH
  .close                  - Close the current world
  .exit                   - Exit the program
  .stats                  - Show map access statistics

  GET x y z               - Read the node at a world position
  SET x y z content [p1 [p2]]
                          - Stage a node edit (buffered until COMMIT)
  PARAM1 x y z value      - Stage a param1 edit
  PARAM2 x y z value      - Stage a param2 edit
  COMMIT                  - Write all staged edits back to the backend
  BLOCKS [limit]          - List stored block positions (default limit 20)
  CACHE                   - Show edit cache contents
`

func main() {
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "voxmap - A voxel world map shell\n\n")
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: voxmap [options] [world_path]\n\n")
		fmt.Fprintf(flag.CommandLine.Output(), "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(flag.CommandLine.Output(), "\nFor interactive commands, start voxmap and type .help\n")
	}
	flag.Parse()

	if *debug {
		log.Default().SetLevel(log.LevelDebug)
	}

	worldPath := ""
	if flag.NArg() > 0 {
		worldPath = flag.Arg(0)
	}

	var w *world.World
	var err error
	if worldPath != "" {
		fmt.Printf("Opening world at %s\n", worldPath)
		w, err = world.Open(worldPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening world: %s\n", err)
			os.Exit(1)
		}
		defer w.Close()
	}

	runInteractive(w, worldPath)
}

// runInteractive starts the interactive shell
func runInteractive(w *world.World, worldPath string) {
	fmt.Println("voxmap version 1.0.0")
	fmt.Println("Enter .help for usage hints.")

	var vm *manip.VoxelManip
	if w != nil {
		vm = w.NewVoxelManip()
	}

	// Setup readline with history support
	historyFile := filepath.Join(os.TempDir(), ".voxmap_history")
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "voxmap> ",
		HistoryFile:     historyFile,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		AutoComplete:    completer,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing readline: %s\n", err)
		os.Exit(1)
	}
	defer rl.Close()

	ctx := context.Background()

	for {
		// Update prompt based on current state
		prompt := "voxmap> "
		if worldPath != "" {
			if vm != nil && vm.DirtyBlocks() > 0 {
				prompt = fmt.Sprintf("voxmap:%s[%d dirty]> ", worldPath, vm.DirtyBlocks())
			} else {
				prompt = fmt.Sprintf("voxmap:%s> ", worldPath)
			}
		}
		rl.SetPrompt(prompt)

		line, readErr := rl.Readline()
		if readErr != nil {
			if readErr == readline.ErrInterrupt {
				if len(line) == 0 {
					break
				}
				continue
			} else if readErr == io.EOF {
				fmt.Println("Goodbye!")
				break
			}
			fmt.Fprintf(os.Stderr, "Error reading input: %s\n", readErr)
			continue
		}

		if line == "" {
			continue
		}

		parts := strings.Fields(line)
		cmd := strings.ToUpper(parts[0])

		// Special dot commands
		if strings.HasPrefix(cmd, ".") {
			cmd = strings.ToLower(cmd)
			switch cmd {
			case ".help":
				fmt.Print(helpText)

			case ".open":
				if len(parts) < 2 {
					fmt.Println("Error: Missing path argument")
					continue
				}

				if w != nil {
					w.Close()
				}

				worldPath = parts[1]
				w, err = world.Open(worldPath)
				if err != nil {
					fmt.Fprintf(os.Stderr, "Error opening world: %s\n", err)
					w = nil
					vm = nil
					worldPath = ""
					continue
				}
				vm = w.NewVoxelManip()
				fmt.Printf("World opened at %s (backend: %s)\n", worldPath, w.BackendName())

			case ".close":
				if w == nil {
					fmt.Println("No world open")
					continue
				}

				if vm != nil && vm.DirtyBlocks() > 0 {
					fmt.Printf("Warning: discarding %d uncommitted blocks\n", vm.DirtyBlocks())
				}

				err = w.Close()
				if err != nil {
					fmt.Fprintf(os.Stderr, "Error closing world: %s\n", err)
				} else {
					fmt.Printf("World %s closed\n", worldPath)
					w = nil
					vm = nil
					worldPath = ""
				}

			case ".exit", ".quit":
				if w != nil {
					if vm != nil && vm.DirtyBlocks() > 0 {
						fmt.Printf("Warning: discarding %d uncommitted blocks\n", vm.DirtyBlocks())
					}
					w.Close()
				}
				fmt.Println("Goodbye!")
				return

			case ".stats":
				if w == nil {
					fmt.Println("No world open")
					continue
				}
				printStats(w, vm)

			default:
				fmt.Printf("Unknown command: %s\n", cmd)
			}
			continue
		}

		if w == nil {
			fmt.Println("No world open. Use .open PATH first.")
			continue
		}

		switch cmd {
		case "GET":
			pos, ok := parsePos(parts[1:], 3)
			if !ok {
				fmt.Println("Usage: GET x y z")
				continue
			}
			node, err := vm.GetNode(ctx, pos)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %s\n", err)
				continue
			}
			fmt.Printf("%v: content=%q param1=%d param2=%d\n", pos, node.Content, node.Param1, node.Param2)

		case "SET":
			if len(parts) < 5 {
				fmt.Println("Usage: SET x y z content [param1 [param2]]")
				continue
			}
			pos, ok := parsePos(parts[1:4], 3)
			if !ok {
				fmt.Println("Usage: SET x y z content [param1 [param2]]")
				continue
			}
			content := parts[4]

			var p1, p2 byte
			if len(parts) > 5 {
				v, err := strconv.ParseUint(parts[5], 10, 8)
				if err != nil {
					fmt.Fprintf(os.Stderr, "Error: bad param1 %q\n", parts[5])
					continue
				}
				p1 = byte(v)
			}
			if len(parts) > 6 {
				v, err := strconv.ParseUint(parts[6], 10, 8)
				if err != nil {
					fmt.Fprintf(os.Stderr, "Error: bad param2 %q\n", parts[6])
					continue
				}
				p2 = byte(v)
			}

			if len(parts) > 5 {
				err = vm.SetNode(ctx, pos, mapblock.Node{Content: content, Param1: p1, Param2: p2})
			} else {
				err = vm.SetContent(ctx, pos, content)
			}
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %s\n", err)
				continue
			}
			fmt.Printf("Staged %v = %q (commit to persist)\n", pos, content)

		case "PARAM1", "PARAM2":
			if len(parts) != 5 {
				fmt.Printf("Usage: %s x y z value\n", cmd)
				continue
			}
			pos, ok := parsePos(parts[1:4], 3)
			if !ok {
				fmt.Printf("Usage: %s x y z value\n", cmd)
				continue
			}
			v, err := strconv.ParseUint(parts[4], 10, 8)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: bad value %q\n", parts[4])
				continue
			}
			if cmd == "PARAM1" {
				err = vm.SetParam1(ctx, pos, byte(v))
			} else {
				err = vm.SetParam2(ctx, pos, byte(v))
			}
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %s\n", err)
				continue
			}
			fmt.Printf("Staged %s at %v (commit to persist)\n", strings.ToLower(cmd), pos)

		case "COMMIT":
			dirty := vm.DirtyBlocks()
			start := time.Now()
			if err := vm.Commit(ctx); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %s\n", err)
				continue
			}
			fmt.Printf("Committed %d blocks in %s\n", dirty, time.Since(start))

		case "BLOCKS":
			limit := 20
			if len(parts) > 1 {
				n, err := strconv.Atoi(parts[1])
				if err != nil || n < 1 {
					fmt.Println("Usage: BLOCKS [limit]")
					continue
				}
				limit = n
			}
			listBlocks(ctx, w, limit)

		case "CACHE":
			fmt.Printf("Cached blocks: %d (%d dirty)\n", vm.CachedBlocks(), vm.DirtyBlocks())

		default:
			fmt.Printf("Unknown command: %s\n", cmd)
		}
	}
}

// parsePos parses n signed coordinates into a world position.
func parsePos(args []string, n int) (coords.Pos, bool) {
	if len(args) < n {
		return coords.Pos{}, false
	}
	vals := make([]int16, n)
	for i := 0; i < n; i++ {
		v, err := strconv.ParseInt(args[i], 10, 16)
		if err != nil {
			return coords.Pos{}, false
		}
		vals[i] = int16(v)
	}
	return coords.NewPos(vals[0], vals[1], vals[2]), true
}

// listBlocks prints up to limit stored block positions.
func listBlocks(ctx context.Context, w *world.World, limit int) {
	it, err := w.MapData().AllBlockPositions(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		return
	}
	defer it.Close()

	count := 0
	for it.Next() {
		if count < limit {
			bp := it.Pos()
			fmt.Printf("%v (key %d)\n", bp, bp.Key().Int64())
		}
		count++
	}
	if err := it.Err(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		return
	}
	if count > limit {
		fmt.Printf("... and %d more\n", count-limit)
	}
	fmt.Printf("%d blocks stored\n", count)
}

// printStats dumps the collector's counters in a stable order.
func printStats(w *world.World, vm *manip.VoxelManip) {
	stats := w.MapData().Stats().GetStats()

	fmt.Println("📊 Map Access Statistics")
	fmt.Println("------------------------")

	order := []string{
		"get_node_ops", "set_node_ops", "get_block_ops", "put_block_ops",
		"block_load_count", "block_flush_count", "commit_ops",
		"total_bytes_read", "total_bytes_written",
	}
	for _, key := range order {
		if val, ok := stats[key]; ok {
			fmt.Printf("%-22s %v\n", key, val)
		}
	}

	if vm != nil {
		fmt.Printf("%-22s %d\n", "cached_blocks", vm.CachedBlocks())
		fmt.Printf("%-22s %d\n", "dirty_blocks", vm.DirtyBlocks())
	}

	if errStats, ok := stats["errors"].(map[string]uint64); ok && len(errStats) > 0 {
		fmt.Println("\nErrors:")
		for errType, count := range errStats {
			fmt.Printf("  %-20s %d\n", errType, count)
		}
	}
}
