package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/brushwork-ai/brushwork/internal/daemon"
	"github.com/brushwork-ai/brushwork/internal/domain"
)

func init() {
	keysCmd.AddCommand(keysListCmd, keysAddCmd, keysRmCmd)
	rootCmd.AddCommand(keysCmd)
}

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage Gemini API keys",
}

var keysListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List configured API keys",
	RunE:    runKeysList,
}

var keysAddCmd = &cobra.Command{
	Use:   "add KEY",
	Short: "Add a Gemini API key to the pool",
	Args:  cobra.ExactArgs(1),
	RunE:  runKeysAdd,
}

var keysRmCmd = &cobra.Command{
	Use:   "rm SUFFIX",
	Short: "Remove the API key ending in SUFFIX",
	Args:  cobra.ExactArgs(1),
	RunE:  runKeysRm,
}

func runKeysList(cmd *cobra.Command, args []string) error {
	d, err := daemon.New(rootCmd.Version)
	if err != nil {
		return err
	}
	defer d.Close()

	keys := d.Pool.Keys()
	if len(keys) == 0 {
		fmt.Println("No API keys configured. Run 'brushwork keys add <key>' to get started.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SUFFIX\tKEY")
	for _, k := range keys {
		fmt.Fprintf(w, "%s\t%s\n", domain.KeySuffix(k), k)
	}
	return w.Flush()
}

func runKeysAdd(cmd *cobra.Command, args []string) error {
	key := args[0]
	if err := domain.ValidateKey(key); err != nil {
		return err
	}

	d, err := daemon.New(rootCmd.Version)
	if err != nil {
		return err
	}
	defer d.Close()

	if !d.Pool.Add(key) {
		return domain.ErrKeyExists
	}
	fmt.Printf("Added key ...%s\n", domain.KeySuffix(key))
	return nil
}

func runKeysRm(cmd *cobra.Command, args []string) error {
	d, err := daemon.New(rootCmd.Version)
	if err != nil {
		return err
	}
	defer d.Close()

	if !d.Pool.RemoveBySuffix(args[0]) {
		return domain.ErrKeyNotFound
	}
	fmt.Printf("Removed key ...%s\n", args[0])
	return nil
}
