package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"meal-analyzer/internal/core/advice"
	"meal-analyzer/internal/core/analysis"
	"meal-analyzer/internal/core/fusion"
	"meal-analyzer/internal/core/nutrition"
	"meal-analyzer/internal/pkg/common"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// rootOptions 全域旗標
type rootOptions struct {
	LogLevel      string
	SQLitePath    string
	NutritionPath string
	GIPath        string
	ExtendedPath  string
}

// detectionsFile score 指令的輸入格式
type detectionsFile struct {
	Anchor    []fusion.RawDetection `json:"anchor"`
	Auxiliary []fusion.RawDetection `json:"auxiliary"`
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "mealctl",
		Short: "Meal detection fusion and nutrition scoring tools",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			common.InitConsoleLogger(opts.LogLevel)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&opts.LogLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	pf.StringVar(&opts.SQLitePath, "db", "", "SQLite lookup table database")
	pf.StringVar(&opts.NutritionPath, "nutrition", "", "nutrition table JSON (default: built-in)")
	pf.StringVar(&opts.GIPath, "glycemic-index", "", "glycemic index table JSON (default: built-in)")
	pf.StringVar(&opts.ExtendedPath, "extended", "", "extended food dataset JSON (default: built-in)")

	cmd.AddCommand(
		newScoreCmd(opts),
		newLookupCmd(opts),
		newImportCmd(opts),
	)
	return cmd
}

func (o *rootOptions) tables(ctx context.Context) (*nutrition.Tables, error) {
	if o.SQLitePath != "" {
		return nutrition.LoadSQLite(ctx, o.SQLitePath)
	}
	return o.jsonTables(ctx)
}

func (o *rootOptions) jsonTables(ctx context.Context) (*nutrition.Tables, error) {
	return nutrition.LoadTables(ctx, nutrition.Paths{
		Nutrition:     o.NutritionPath,
		GlycemicIndex: o.GIPath,
		Extended:      o.ExtendedPath,
	})
}

func newScoreCmd(opts *rootOptions) *cobra.Command {
	var (
		input   string
		profile advice.HealthProfile
	)

	cmd := &cobra.Command{
		Use:   "score",
		Short: "Fuse detections from a JSON file and score the meal",
		Long:  "Reads {\"anchor\": [...], \"auxiliary\": [...]} from --input (\"-\" for stdin) and prints the scored meal as JSON.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			var r io.Reader = cmd.InOrStdin()
			if input != "-" {
				f, err := os.Open(input)
				if err != nil {
					return fmt.Errorf("failed to open input: %w", err)
				}
				defer f.Close()
				r = f
			}

			var in detectionsFile
			if err := common.DecodeJSON(r, &in); err != nil {
				return fmt.Errorf("invalid detections: %w", err)
			}

			tables, err := opts.tables(ctx)
			if err != nil {
				return err
			}
			svc, err := analysis.NewService(analysis.DefaultConfig(), tables, analysis.Collaborators{}, nil)
			if err != nil {
				return err
			}

			anchor := toDetections(in.Anchor, fusion.SourceAnchor)
			auxiliary := toDetections(in.Auxiliary, fusion.SourceAuxiliary)
			return printJSON(cmd.OutOrStdout(), svc.ScoreDetections(anchor, auxiliary, profile))
		},
	}

	cmd.Flags().StringVarP(&input, "input", "i", "-", "detections JSON file")
	cmd.Flags().BoolVar(&profile.Diabetes, "diabetes", false, "apply diabetes warnings")
	cmd.Flags().BoolVar(&profile.Hypertension, "hypertension", false, "apply hypertension warnings")
	cmd.Flags().BoolVar(&profile.Ulcer, "ulcer", false, "apply ulcer warnings")
	cmd.Flags().BoolVar(&profile.AcidReflux, "acid-reflux", false, "apply acid reflux warnings")
	cmd.Flags().BoolVar(&profile.WeightLoss, "weight-loss", false, "apply weight loss warnings")
	cmd.Flags().StringVar(&profile.DiabetesType, "diabetes-type", "", "diabetes type for spike prediction (e.g. \"type 1\")")
	cmd.Flags().StringVar(&profile.ActivityLevel, "activity-level", "", "sedentary, light, moderate, vigorous or very_vigorous")
	return cmd
}

// toDetections 轉換原始偵測，格式錯誤者略過
func toDetections(raw []fusion.RawDetection, source fusion.Source) []fusion.DetectionItem {
	items := make([]fusion.DetectionItem, 0, len(raw))
	for i, r := range raw {
		item, err := r.ToDetection(source)
		if err != nil {
			common.LogWarn("略過格式錯誤的偵測",
				zap.String("source", string(source)),
				zap.Int("index", i),
				zap.Error(err),
			)
			continue
		}
		items = append(items, item)
	}
	return items
}

func newLookupCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "lookup <food>",
		Short: "Show nutrition for a single food name",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tables, err := opts.tables(cmd.Context())
			if err != nil {
				return err
			}
			item := nutrition.NewEnricher(tables, nutrition.DefaultReferenceArea).Lookup(strings.Join(args, " "))
			return printJSON(cmd.OutOrStdout(), item)
		},
	}
}

func newImportCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "import-sqlite",
		Short: "Write the JSON lookup tables into the --db SQLite database",
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.SQLitePath == "" {
				return fmt.Errorf("--db is required")
			}
			ctx := cmd.Context()

			tables, err := opts.jsonTables(ctx)
			if err != nil {
				return err
			}
			store, err := nutrition.OpenStore(opts.SQLitePath)
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.Save(ctx, tables); err != nil {
				return err
			}
			n, gi, ext := tables.Sizes()
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d nutrition, %d glycemic index, %d extended entries into %s\n",
				n, gi, ext, opts.SQLitePath)
			return nil
		},
	}
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
