package main

import (
	"fmt"

	"github.com/open-edge-platform/devenv-composer/internal/condition"
	"github.com/open-edge-platform/devenv-composer/internal/config"
	"github.com/open-edge-platform/devenv-composer/internal/hwprofile"
	"github.com/open-edge-platform/devenv-composer/internal/provisioner"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func createFactsCommand() *cobra.Command {
	var profile string

	cmd := &cobra.Command{
		Use:   "facts",
		Short: "Show the detected host facts",
		Long: `Show the hardware facts conditions are evaluated against: GPU vendors,
laptop, virtual machine and ASUS hardware. With a hardware profile the
profile's declarations are merged over the detected values.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if profile == "" {
				profile = config.Global().Profile
			}

			facts := newFactSource().Detect()
			if profile != "" {
				prof, err := loadProfile(profile)
				if err != nil {
					return err
				}
				facts = prof.Apply(facts)
			}

			data, err := yaml.Marshal(struct {
				Profile                string `yaml:"profile,omitempty"`
				condition.FactSnapshot `yaml:",inline"`
			}{profile, facts})
			if err != nil {
				return fmt.Errorf("encoding facts: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}

	cmd.Flags().StringVar(&profile, "profile", "", "Hardware profile id to merge over the detected facts")
	return cmd
}

func loadProfile(id string) (hwprofile.Profile, error) {
	dir := config.Global().ConfigDir
	path, ok := provisioner.FindDataFile(dir, hwprofile.DefaultFile)
	if !ok {
		return hwprofile.Profile{}, fmt.Errorf("%w %q: no %s in %s", hwprofile.ErrUnknownProfile, id, hwprofile.DefaultFile, dir)
	}
	set, err := hwprofile.LoadFile(path)
	if err != nil {
		return hwprofile.Profile{}, err
	}
	return set.Get(id)
}
