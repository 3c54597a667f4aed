package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"econharvest/internal/providers"
	"econharvest/internal/registry"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the registry and API keys without any network call",
	RunE:  runValidate,
}

func init() {
	validateCmd.Flags().String("registry", "configs/registry.json", "Path to the dataset registry")
}

func runValidate(cmd *cobra.Command, _ []string) error {
	registryPath, _ := cmd.Flags().GetString("registry")

	reg, err := registry.Load(registryPath)
	if err != nil {
		return err
	}
	if err := providers.CheckRegistry(reg); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	keys := registry.NewKeyResolver()
	for _, name := range reg.ProviderNames() {
		provider := reg.Providers[name]
		keyStatus := "key present"
		if _, err := keys.Resolve(provider.APIKeyEnvVar); err != nil {
			keyStatus = fmt.Sprintf("key missing (%s unset)", provider.APIKeyEnvVar)
		}
		fmt.Fprintf(out, "%-4s %d dataset(s), %s\n", name, len(provider.Datasets), keyStatus)
	}
	fmt.Fprintf(out, "registry ok: %d provider(s), %d dataset(s)\n",
		len(reg.ProviderNames()), reg.DatasetCount())
	return nil
}
