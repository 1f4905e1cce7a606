package main

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"olimpia/internal/app"
	"olimpia/internal/domain"
	"olimpia/internal/engine"
)

func heatCmd() *cobra.Command {
	heat := &cobra.Command{Use: "heat", Short: "Manage heats of a modality inside an event"}
	heat.AddCommand(heatListCmd())
	heat.AddCommand(heatCreateCmd(false))
	heat.AddCommand(heatCreateCmd(true))
	heat.AddCommand(heatClearCmd())
	return heat
}

func heatListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list <modality> <event>",
		Short: "List heats with their completion status",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				list, err := rt.Engine.ListHeats(ctx, args[0], args[1])
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(list)
				}
				if !list.UsesHeats {
					fmt.Printf("%s does not use heats\n", args[0])
					return nil
				}
				printHeats(list.Heats)
				return nil
			})
		},
	}
}

func printHeats(heats []domain.Heat) {
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"Heat", "Final", "Athletes", "Scored", "Status"})
	for _, h := range heats {
		tw.AppendRow(table.Row{h.Number, h.IsFinal, h.AthleteCount, h.ScoredCount, h.Status})
	}
	tw.Render()
}

func heatCreateCmd(final bool) *cobra.Command {
	use, short := "create <modality> <event>", "Create the next regular heat"
	if final {
		use, short = "final <modality> <event>", "Create the final heat"
	}
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				var (
					h   domain.Heat
					err error
				)
				if final {
					h, err = rt.Engine.CreateFinalHeat(ctx, args[0], args[1], judgeID())
				} else {
					h, err = rt.Engine.CreateHeat(ctx, args[0], args[1], judgeID())
				}
				if err != nil {
					return err
				}
				return printJSONOrTable(h)
			})
		},
	}
}

func heatClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear <modality> <event>",
		Short: "Clear the heat configuration, keeping each athlete's latest result",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				n, err := rt.Engine.ClearHeats(ctx, args[0], args[1], judgeID())
				if err != nil {
					return err
				}
				fmt.Printf("cleared heats of %s/%s (%d scores affected)\n", args[0], args[1], n)
				return nil
			})
		},
	}
}

func scoreCmd() *cobra.Command {
	score := &cobra.Command{Use: "score", Short: "Record and list scores"}
	score.AddCommand(scoreSubmitCmd())
	score.AddCommand(scoreListCmd())
	score.AddCommand(scoreAssignCmd())
	score.AddCommand(scorePlaceCmd())
	return score
}

func scoreSubmitCmd() *cobra.Command {
	var values string
	var pairs []string
	cmd := &cobra.Command{
		Use:   "submit <modality> <event> <athlete>",
		Short: "Normalize form values and store an athlete's score",
		Example: `  olimpia score submit salto-em-distancia jogos-2024 ana --set meters=7 --set centimeters=45
  olimpia score submit natacao jogos-2024 bia --values '{"heat":1,"lane":4,"minutes":0,"seconds":21,"milliseconds":34}'`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			state, err := parseValues(values, pairs)
			if err != nil {
				return err
			}
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				s, err := rt.Engine.SubmitScore(ctx, engine.SubmitOptions{
					ModalityID: args[0],
					EventID:    args[1],
					AthleteID:  args[2],
					ActorID:    judgeID(),
					Values:     state,
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(s)
			})
		},
	}
	cmd.Flags().StringVar(&values, "values", "", "form values as a JSON object")
	cmd.Flags().StringArrayVar(&pairs, "set", nil, "form value as key=value (repeatable)")
	return cmd
}

func scoreListCmd() *cobra.Command {
	var athlete string
	var heat int
	var scored, hasHeat bool
	cmd := &cobra.Command{
		Use:   "list <modality> <event>",
		Short: "List scores",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				items, err := rt.Engine.ListScores(ctx, engine.ScoreQuery{
					ModalityID: args[0],
					EventID:    args[1],
					AthleteID:  athlete,
					Heat:       intFlag(cmd, "heat", heat),
					HasHeat:    boolFlag(cmd, "has-heat", hasHeat),
					OnlyScored: scored,
				})
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				printScores(items)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&athlete, "athlete", "", "athlete filter")
	cmd.Flags().IntVar(&heat, "heat", 0, "heat filter")
	cmd.Flags().BoolVar(&scored, "scored", false, "only scores with a value")
	cmd.Flags().BoolVar(&hasHeat, "has-heat", false, "only scores with (true) or without (false) a heat")
	return cmd
}

// printScores orders by heat, then lane, then athlete.
func printScores(items []domain.Score) {
	sort.SliceStable(items, func(i, j int) bool {
		hi, hj := intOr(items[i].HeatNumber, 0), intOr(items[j].HeatNumber, 0)
		if hi != hj {
			return hi < hj
		}
		li, lj := intOr(items[i].Lane, 0), intOr(items[j].Lane, 0)
		if li != lj {
			return li < lj
		}
		return items[i].AthleteID < items[j].AthleteID
	})
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"Athlete", "Heat", "Lane", "Value", "Position", "Medal", "Judge"})
	for _, s := range items {
		tw.AppendRow(table.Row{s.AthleteID, deref(s.HeatNumber), deref(s.Lane), deref(s.Value), deref(s.FinalPosition), deref(s.Medal), s.JudgeID})
	}
	tw.Render()
}

func intOr(p *int, fallback int) int {
	if p == nil {
		return fallback
	}
	return *p
}

func scoreAssignCmd() *cobra.Command {
	var heat, lane int
	cmd := &cobra.Command{
		Use:   "assign <modality> <event> <athlete>",
		Short: "Assign an athlete to a heat and lane without a value",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			if heat <= 0 {
				return fmt.Errorf("--heat required")
			}
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				s, err := rt.Engine.AssignLane(ctx, engine.LaneOptions{
					ModalityID: args[0],
					EventID:    args[1],
					AthleteID:  args[2],
					Heat:       heat,
					Lane:       intFlag(cmd, "lane", lane),
					ActorID:    judgeID(),
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(s)
			})
		},
	}
	cmd.Flags().IntVar(&heat, "heat", 0, "heat number")
	cmd.Flags().IntVar(&lane, "lane", 0, "lane number")
	return cmd
}

func scorePlaceCmd() *cobra.Command {
	var heat, position int
	var medal string
	cmd := &cobra.Command{
		Use:   "place <modality> <event> <athlete>",
		Short: "Record final position and medal",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				s, err := rt.Engine.SetPlacement(ctx, engine.PlacementOptions{
					ModalityID:    args[0],
					EventID:       args[1],
					AthleteID:     args[2],
					Heat:          intFlag(cmd, "heat", heat),
					FinalPosition: intFlag(cmd, "position", position),
					Medal:         medal,
					ActorID:       judgeID(),
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(s)
			})
		},
	}
	cmd.Flags().IntVar(&heat, "heat", 0, "heat of the score")
	cmd.Flags().IntVar(&position, "position", 0, "final position")
	cmd.Flags().StringVar(&medal, "medal", "", "medal (gold, silver, bronze)")
	return cmd
}
