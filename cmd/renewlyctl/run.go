package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/renewly/internal/pipeline"
	"github.com/spf13/cobra"
)

func runCommand(d *deps) *cobra.Command {
	var (
		tenantID   int64
		tenantName string
		source     string
		file       string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Classify members from a JSON file and persist a batch",
		RunE: func(cmd *cobra.Command, _ []string) error {
			inputs, err := readMembers(cmd.InOrStdin(), file)
			if err != nil {
				return err
			}
			records, err := pipeline.ToRecords(inputs)
			if err != nil {
				return err
			}
			if source == "" && file != "-" {
				source = file
			}

			res, err := d.pipeline.Run(cmd.Context(), pipeline.RunRequest{
				Tenant:      pipeline.Tenant{ID: snowflake.ID(tenantID), Name: tenantName},
				SourceLabel: source,
				Members:     records,
			})
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), res)
		},
	}

	cmd.Flags().Int64Var(&tenantID, "tenant-id", 0, "tenant snowflake id")
	cmd.Flags().StringVar(&tenantName, "tenant-name", "", "tenant display name used in messages")
	cmd.Flags().StringVar(&source, "source", "", "source label recorded with the batch (defaults to the file name)")
	cmd.Flags().StringVar(&file, "file", "", "JSON array of members, or - for stdin")
	_ = cmd.MarkFlagRequired("tenant-id")
	_ = cmd.MarkFlagRequired("tenant-name")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func readMembers(stdin io.Reader, file string) ([]pipeline.MemberInput, error) {
	file = strings.TrimSpace(file)
	if file == "" {
		return nil, errors.New("--file is required")
	}

	var (
		raw []byte
		err error
	)
	if file == "-" {
		raw, err = io.ReadAll(stdin)
	} else {
		raw, err = os.ReadFile(file)
	}
	if err != nil {
		return nil, fmt.Errorf("read members: %w", err)
	}

	var inputs []pipeline.MemberInput
	if err := json.Unmarshal(raw, &inputs); err != nil {
		return nil, fmt.Errorf("%w: decode members: %v", pipeline.ErrInputContract, err)
	}
	return inputs, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
