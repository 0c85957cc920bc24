package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lazypower/affect/internal/client"
	"github.com/lazypower/affect/internal/codec"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Ask a running server to load its inference model",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := client.NewClient().Initialize(); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Model initialized")
		return nil
	},
}

var npcCmd = &cobra.Command{
	Use:   "npc",
	Short: "Manage NPC sessions on a running server",
}

var (
	npcMemoriesFile string
	npcSource       string
	npcElapsed      int64
	npcFormat       string
)

var npcCreateCmd = &cobra.Command{
	Use:   "create <config-file>",
	Short: "Create an NPC from a JSON or YAML config",
	Args:  cobra.ExactArgs(1),
	RunE:  runNpcCreate,
}

var npcListCmd = &cobra.Command{
	Use:   "ls",
	Short: "List live NPCs",
	Args:  cobra.NoArgs,
	RunE:  runNpcList,
}

var npcRemoveCmd = &cobra.Command{
	Use:   "rm <npc-id>",
	Short: "Remove an NPC",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := client.NewClient().RemoveNPC(args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "removed %s\n", args[0])
		return nil
	},
}

var npcEvalCmd = &cobra.Command{
	Use:   "eval <npc-id> <text...>",
	Short: "Evaluate an interaction and record it",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		text := strings.Join(args[1:], " ")
		c, err := client.NewClient().Evaluate(args[0], text, npcSource, npcElapsed)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "valence %+.3f  arousal %+.3f\n", c.Valence, c.Arousal)
		return nil
	},
}

var npcEmotionCmd = &cobra.Command{
	Use:   "emotion <npc-id>",
	Short: "Show the NPC's current emotion",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := client.NewClient().Emotion(args[0], npcSource)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "valence %+.3f  arousal %+.3f\n", c.Valence, c.Arousal)
		return nil
	},
}

var npcMemoryCmd = &cobra.Command{
	Use:   "memory <npc-id>",
	Short: "Print the NPC's memory list",
	Args:  cobra.ExactArgs(1),
	RunE:  runNpcMemory,
}

var npcClearCmd = &cobra.Command{
	Use:   "clear <npc-id>",
	Short: "Forget every memory of an NPC",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := client.NewClient().ClearMemory(args[0]); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Memory cleared")
		return nil
	},
}

var npcAdvanceCmd = &cobra.Command{
	Use:   "advance <npc-id> <minutes>",
	Short: "Let in-world time pass for an NPC",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		minutes, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			return fmt.Errorf("minutes: %w", err)
		}
		clock, err := client.NewClient().Advance(args[0], minutes)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "clock %d\n", clock)
		return nil
	},
}

func init() {
	npcCreateCmd.Flags().StringVarP(&npcMemoriesFile, "memories", "m", "", "Seed memories from a JSON or YAML list")
	npcEvalCmd.Flags().StringVarP(&npcSource, "source", "s", "", "Who caused the interaction")
	npcEvalCmd.Flags().Int64VarP(&npcElapsed, "elapsed", "e", 0, "Minutes since the previous interaction")
	npcEmotionCmd.Flags().StringVarP(&npcSource, "source", "s", "", "Only count memories from this source")
	npcMemoryCmd.Flags().StringVarP(&npcFormat, "format", "f", "json", "Output format: json or yaml")

	npcCmd.AddCommand(npcCreateCmd)
	npcCmd.AddCommand(npcListCmd)
	npcCmd.AddCommand(npcRemoveCmd)
	npcCmd.AddCommand(npcEvalCmd)
	npcCmd.AddCommand(npcEmotionCmd)
	npcCmd.AddCommand(npcMemoryCmd)
	npcCmd.AddCommand(npcClearCmd)
	npcCmd.AddCommand(npcAdvanceCmd)
}

func runNpcCreate(cmd *cobra.Command, args []string) error {
	raw, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	cfg, err := codec.DecodeConfig(raw)
	if err != nil {
		return err
	}
	// The server speaks JSON; YAML inputs are converted here.
	config, err := codec.EncodeConfig(cfg, codec.JSON)
	if err != nil {
		return err
	}

	var memories json.RawMessage
	if npcMemoriesFile != "" {
		raw, err := os.ReadFile(npcMemoriesFile)
		if err != nil {
			return fmt.Errorf("read memories: %w", err)
		}
		entries, err := codec.DecodeMemories(raw)
		if err != nil {
			return err
		}
		if memories, err = codec.EncodeMemories(entries, codec.JSON); err != nil {
			return err
		}
	}

	id, err := client.NewClient().CreateNPC(config, memories)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), id)
	return nil
}

func runNpcList(cmd *cobra.Command, args []string) error {
	sessions, err := client.NewClient().ListNPCs()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(sessions) == 0 {
		fmt.Fprintln(out, "No NPC sessions.")
		return nil
	}
	for _, s := range sessions {
		fmt.Fprintf(out, "%s  %-16s  mem=%-4d clock=%-6d valence %+.3f  arousal %+.3f\n",
			s.NpcID, s.Name, s.Memories, s.Clock, s.Emotion.Valence, s.Emotion.Arousal)
	}
	return nil
}

func runNpcMemory(cmd *cobra.Command, args []string) error {
	format, err := codec.ParseFormat(npcFormat)
	if err != nil {
		return err
	}
	raw, err := client.NewClient().Memory(args[0])
	if err != nil {
		return err
	}
	entries, err := codec.DecodeMemories(raw)
	if err != nil {
		return err
	}
	data, err := codec.EncodeMemories(entries, format)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), strings.TrimRight(string(data), "\n"))
	return nil
}
