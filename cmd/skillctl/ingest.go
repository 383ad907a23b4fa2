package main

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mind-engage/skillway/internal/content"
	"github.com/mind-engage/skillway/internal/ingest"
	"github.com/mind-engage/skillway/internal/storage"
	syncx "github.com/mind-engage/skillway/internal/sync"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Validate or import a curriculum spreadsheet",
}

var ingestPreviewCmd = &cobra.Command{
	Use:   "preview <file>",
	Short: "Validate a spreadsheet and print the row report",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runIngest(cmd, args[0], false)
	},
}

var ingestCommitCmd = &cobra.Command{
	Use:   "commit <file>",
	Short: "Import a spreadsheet into the catalog",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runIngest(cmd, args[0], true)
	},
}

func init() {
	for _, c := range []*cobra.Command{ingestPreviewCmd, ingestCommitCmd} {
		c.Flags().StringToString("map", nil, "Column overrides, e.g. --map subject=Fan,lesson=Mavzu")
	}
	ingestCommitCmd.Flags().String("as", "", "Email of the teacher or admin the import is recorded under")
	_ = ingestCommitCmd.MarkFlagRequired("as")

	ingestCmd.AddCommand(ingestPreviewCmd)
	ingestCmd.AddCommand(ingestCommitCmd)
}

func runIngest(cmd *cobra.Command, file string, commit bool) error {
	raw, err := os.ReadFile(file)
	if err != nil {
		return err
	}
	mapping, _ := cmd.Flags().GetStringToString("map")
	up := ingest.Upload{
		FileBase64: base64.StdEncoding.EncodeToString(raw),
		FileName:   filepath.Base(file),
		Mapping:    mapping,
	}

	cfg := loadConfig(cmd)
	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer log.Sync()

	dbh, err := openDB(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer dbh.Close()

	blobs, err := storage.NewFSStore(filepath.Join(cfg.BlobBasePath, "blobs"))
	if err != nil {
		return err
	}
	store := content.NewSQLStore(dbh)
	svc := ingest.NewService(store, blobs, syncx.NewEventRepo(dbh), log,
		ingest.WithLimits(ingest.Limits{MaxRows: cfg.Ingest.MaxRows, MaxBytes: cfg.Ingest.MaxBytes}),
	)

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")

	if !commit {
		up.Mode = ingest.ModePreview
		p, err := svc.Preview(cmd.Context(), up)
		if err != nil {
			return reportErr(enc, err)
		}
		return enc.Encode(p)
	}

	as, _ := cmd.Flags().GetString("as")
	u, err := store.GetUserByEmail(cmd.Context(), strings.ToLower(as))
	if errors.Is(err, content.ErrNotFound) {
		return fmt.Errorf("no account for %s", as)
	}
	if err != nil {
		return err
	}
	up.Mode = ingest.ModeCommit
	res, err := svc.Commit(cmd.Context(), content.Caller{UID: u.UID, Email: u.Email, Role: u.Role, Grade: u.Grade}, up)
	if err != nil {
		return reportErr(enc, err)
	}
	return enc.Encode(res)
}

// reportErr prints the row report behind a rejected upload before
// returning the error.
func reportErr(enc *json.Encoder, err error) error {
	var re *ingest.ReportError
	if errors.As(err, &re) {
		_ = enc.Encode(re.Report)
	}
	return err
}
