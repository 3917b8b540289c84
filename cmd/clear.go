package cmd

import (
	"github.com/dnitsch/lambda-url-auth/internal/apperr"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	force    bool
	clearCmd = &cobra.Command{
		Use:   "clear-cache <flags>",
		Short: "Clears any pending sign in kept in the OS secret store",
		RunE:  clear,
	}
)

func init() {
	clearCmd.PersistentFlags().BoolVarP(&force, "force", "f", false, "If lambda-url-auth exited improperly in a previous run there is a chance that there could be hanging processes left over - this will clean them up forcefully and remove the browser profile")
	RootCmd.AddCommand(clearCmd)
}

func clear(cmd *cobra.Command, args []string) error {
	if force {
		w, err := webUi()
		if err != nil {
			return err
		}
		if err := w.ClearCache(); err != nil {
			return apperr.New(apperr.KindConfiguration, "clear-cache", err)
		}
		log.Info().Msg("Chromium Cache cleared")
	}

	store, _, err := newSecretStore()
	if err != nil {
		return apperr.New(apperr.KindConfiguration, "clear-cache", err)
	}
	if err := store.ClearAll(); err != nil {
		return apperr.New(apperr.KindConfiguration, "clear-cache", err)
	}
	log.Info().Msg("pending sign in state cleared")
	return nil
}
