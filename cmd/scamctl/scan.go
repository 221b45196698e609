package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"scamshield/internal/domain/models"
	"scamshield/internal/domain/services"
	"scamshield/internal/domain/services/heuristic"
	"scamshield/internal/infrastructure/memory"
)

func (a *app) scanCmd() *cobra.Command {
	var (
		channel   string
		offline   bool
		highlight bool
		seed      uint64
	)

	cmd := &cobra.Command{
		Use:   "scan <text>",
		Short: "Classify a message",
		Long: `Classify a message with the ScamShield API. When the API is unreachable,
not logged in, or --offline is set, the local keyword heuristic is used.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var remote services.RemoteClassifier
			if !offline {
				client, err := a.client()
				if err != nil {
					return err
				}
				if client.IsAuthenticated() {
					remote = client
				} else {
					a.log.Debug().Msg("not logged in, using heuristic")
				}
			}

			cfg := heuristic.DefaultConfig()
			cfg.Seed = seed
			scans := services.NewScanService(
				heuristic.New(cfg),
				remote,
				memory.NewScanStore(),
				memory.NewStatsStore(),
				services.DefaultScanServiceConfig(),
				a.log,
			)

			rec, err := scans.Scan(cmd.Context(), &models.ScanRequest{
				Text:    strings.Join(args, " "),
				Channel: models.Channel(strings.ToUpper(channel)),
			}, nil)
			if err != nil {
				return err
			}

			if highlight {
				_, err = fmt.Fprintln(a.out, rec.Highlighted)
				return err
			}
			return a.printJSON(rec)
		},
	}

	cmd.Flags().StringVar(&channel, "channel", string(models.ChannelSMS), "message channel (SMS, EMAIL, WHATSAPP, OTHER)")
	cmd.Flags().BoolVar(&offline, "offline", false, "skip the API and use the local heuristic")
	cmd.Flags().BoolVar(&highlight, "highlight", false, "print the message with trigger phrases marked")
	cmd.Flags().Uint64Var(&seed, "seed", 0, "fixed jitter seed for reproducible risk scores")

	return cmd
}

func (a *app) lexiconCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "lexicon",
		Short: "Print the heuristic trigger phrases",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			for _, tp := range heuristic.DefaultLexicon {
				if _, err := fmt.Fprintf(a.out, "%-10s %s\n", tp.Tactic, strings.Join(tp.Phrases, ", ")); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func (a *app) printJSON(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
