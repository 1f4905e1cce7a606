package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"olimpia/internal/app"
	"olimpia/internal/domain"
	"olimpia/internal/scoring"
)

func ruleCmd() *cobra.Command {
	rule := &cobra.Command{Use: "rule", Short: "Manage modality scoring rules"}
	rule.AddCommand(ruleSetCmd())
	rule.AddCommand(ruleShowCmd())
	rule.AddCommand(ruleListCmd())
	rule.AddCommand(ruleDeleteCmd())
	return rule
}

func ruleSetCmd() *cobra.Command {
	var ruleType, base, params string
	var pairs []string
	cmd := &cobra.Command{
		Use:   "set <modality>",
		Short: "Create or replace a modality rule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if ruleType == "" {
				return fmt.Errorf("--type required")
			}
			p, err := parseValues(params, pairs)
			if err != nil {
				return err
			}
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				rec, err := rt.Engine.SetRule(ctx, domain.RuleRecord{
					ModalityID:  args[0],
					RuleType:    ruleType,
					BaseScoring: base,
					Parameters:  p,
				}, judgeID())
				if err != nil {
					return err
				}
				return printJSONOrTable(rec)
			})
		},
	}
	cmd.Flags().StringVar(&ruleType, "type", "", "rule type (points, distance, time, heats, sets, arrows)")
	cmd.Flags().StringVar(&base, "base", "", "base scoring of a heats rule (points, distance, time)")
	cmd.Flags().StringVar(&params, "params", "", "parameters as a JSON object")
	cmd.Flags().StringArrayVar(&pairs, "param", nil, "parameter as key=value (repeatable)")
	return cmd
}

func ruleShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <modality>",
		Short: "Show a modality rule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				rec, err := rt.Engine.GetRule(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(rec)
			})
		},
	}
}

func ruleListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List modality rules",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				items, err := rt.Engine.ListRules(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Modality", "Type", "Base", "Parameters", "Updated"})
				for _, r := range items {
					p, _ := json.Marshal(r.Parameters)
					tw.AppendRow(table.Row{r.ModalityID, r.RuleType, r.BaseScoring, string(p), r.UpdatedAt})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func ruleDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <modality>",
		Short: "Delete a modality rule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				if err := rt.Engine.DeleteRule(ctx, args[0], judgeID()); err != nil {
					return err
				}
				fmt.Println("deleted rule of", args[0])
				return nil
			})
		},
	}
}

func schemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema <modality>",
		Short: "Show the form schema of a modality",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				schema, err := rt.Engine.Schema(ctx, args[0])
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(schema)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.SetTitle("rule type: %s", schema.RuleType)
				tw.AppendHeader(table.Row{"Field", "Kind", "Default", "Min", "Max", "Optional"})
				for _, f := range schema.Fields {
					tw.AppendRow(table.Row{f.Name, f.Kind, f.Default, deref(f.Min), deref(f.Max), f.Optional})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func defaultsCmd() *cobra.Command {
	var values string
	var pairs []string
	cmd := &cobra.Command{
		Use:   "defaults <modality>",
		Short: "Fill missing form values with rule defaults",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			existing, err := parseValues(values, pairs)
			if err != nil {
				return err
			}
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				out, err := rt.Engine.Defaults(ctx, args[0], existing)
				if err != nil {
					return err
				}
				return printJSON(out)
			})
		},
	}
	cmd.Flags().StringVar(&values, "values", "", "existing values as a JSON object")
	cmd.Flags().StringArrayVar(&pairs, "set", nil, "existing value as key=value (repeatable)")
	return cmd
}

func fieldsCmd() *cobra.Command {
	var values string
	var pairs []string
	var heat int
	cmd := &cobra.Command{
		Use:   "fields <modality> <event>",
		Short: "Render the score entry fields of a modality",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			state, err := parseValues(values, pairs)
			if err != nil {
				return err
			}
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				fs, err := rt.Engine.Fields(ctx, args[0], args[1], state, intFlag(cmd, "heat", heat))
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(fs)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.SetTitle("%s (%s)", fs.RuleType, fs.Variant)
				tw.AppendHeader(table.Row{"Group", "Input", "Kind", "Value", "Read only"})
				for _, g := range fs.Groups {
					if !g.Visible {
						continue
					}
					for _, in := range g.Inputs {
						tw.AppendRow(table.Row{g.Label, in.Name, in.Kind, in.Value, in.ReadOnly})
					}
				}
				tw.Render()
				if fs.Summary.Value != nil {
					fmt.Printf("value: %v %s\n", *fs.Summary.Value, fs.Summary.Unit)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&values, "values", "", "form values as a JSON object")
	cmd.Flags().StringArrayVar(&pairs, "set", nil, "form value as key=value (repeatable)")
	cmd.Flags().IntVar(&heat, "heat", 0, "selected heat")
	return cmd
}

func arrowsCmd() *cobra.Command {
	arrows := &cobra.Command{Use: "arrows", Short: "Archery helpers"}
	var count int
	parse := &cobra.Command{
		Use:   "parse <text>",
		Short: "Parse pasted classification arrows",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			parsed := scoring.ParseArrowText(args[0], count)
			return printJSONOrTable(map[string]any{
				"arrows": parsed,
				"total":  scoring.ClassificationTotal(parsed),
			})
		},
	}
	parse.Flags().IntVar(&count, "count", scoring.DefaultClassificationArrows, "number of arrows")
	arrows.AddCommand(parse)
	return arrows
}
