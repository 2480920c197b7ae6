package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/timmy/memevote/internal/domain"
	"github.com/timmy/memevote/internal/logger"
	"github.com/timmy/memevote/internal/service"
)

func (a *app) eligibilityCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "eligibility",
		Short: "Inspect or edit the allowlist",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "Print every eligible address",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withAllowlist(cmd, func(s *service.AllowlistService) error {
				doc, err := s.List(cmd.Context())
				if err != nil {
					return err
				}
				for _, addr := range doc.EligibleAddresses {
					fmt.Fprintln(cmd.OutOrStdout(), addr)
				}
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "add ADDRESS...",
		Short: "Add addresses to the allowlist",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withAllowlist(cmd, func(s *service.AllowlistService) error {
				n, err := s.Add(cmd.Context(), args...)
				if err != nil {
					return err
				}
				a.log.WithField("count", n).Info("Addresses added")
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "remove ADDRESS...",
		Short: "Remove addresses from the allowlist",
		Long:  "Remove addresses from the allowlist. Votes already cast by them are kept.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withAllowlist(cmd, func(s *service.AllowlistService) error {
				n, err := s.Remove(cmd.Context(), args...)
				if err != nil {
					return err
				}
				a.log.WithField("count", n).Info("Addresses removed")
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "import FILE",
		Short: "Replace the allowlist from a file",
		Long: "Replace the allowlist with the addresses in FILE. The file is either an " +
			`eligibility document ({"eligibleAddresses": [...]}) or one address per line.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", args[0], err)
			}
			addresses, err := parseAddressList(data)
			if err != nil {
				return err
			}
			return a.withAllowlist(cmd, func(s *service.AllowlistService) error {
				n, err := s.Replace(cmd.Context(), addresses)
				if err != nil {
					return err
				}
				a.log.WithFields(logger.Fields{
					"file":  args[0],
					"count": n,
				}).Info("Allowlist imported")
				return nil
			})
		},
	})

	return cmd
}

func (a *app) withAllowlist(cmd *cobra.Command, fn func(*service.AllowlistService) error) error {
	store, err := a.openStore(cmd.Context())
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(service.NewAllowlistService(store))
}

// parseAddressList accepts an eligibility document or a plain list with one
// address per line. Blank lines and lines starting with # are skipped.
func parseAddressList(data []byte) ([]string, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var doc domain.EligibilityDocument
		if err := json.Unmarshal(trimmed, &doc); err != nil {
			return nil, fmt.Errorf("invalid eligibility document: %w", err)
		}
		return doc.EligibleAddresses, nil
	}

	var addresses []string
	scanner := bufio.NewScanner(bytes.NewReader(trimmed))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		addresses = append(addresses, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return addresses, nil
}
