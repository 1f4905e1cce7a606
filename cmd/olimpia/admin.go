package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"olimpia/internal/app"
	"olimpia/internal/repo"
)

func currentCmd() *cobra.Command {
	cur := &cobra.Command{Use: "current", Short: "Event currently being judged"}
	cur.AddCommand(&cobra.Command{
		Use:   "set <event>",
		Short: "Switch the current event",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				ev, err := rt.Engine.SetCurrentEvent(ctx, args[0], judgeID())
				if err != nil {
					return err
				}
				return printJSONOrTable(ev)
			})
		},
	})
	cur.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the current event",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				ev, err := rt.Engine.CurrentEvent(ctx)
				if err != nil {
					return err
				}
				return printJSONOrTable(ev)
			})
		},
	})
	return cur
}

func auditCmd() *cobra.Command {
	audit := &cobra.Command{Use: "audit", Short: "Audit log"}
	var f repo.AuditFilter
	tail := &cobra.Command{
		Use:   "tail",
		Short: "Show the latest audit entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				items, err := rt.Engine.Audit(ctx, judgeID(), f)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "TS", "Type", "Event", "Entity", "Actor"})
				for _, e := range items {
					tw.AppendRow(table.Row{e.ID, e.TS, e.Type, e.EventID, e.EntityKind + "/" + e.EntityID, e.ActorID})
				}
				tw.Render()
				return nil
			})
		},
	}
	tail.Flags().IntVar(&f.Limit, "n", 20, "number of entries")
	tail.Flags().StringVar(&f.Type, "type", "", "entry type filter")
	tail.Flags().StringVar(&f.EventID, "event", "", "event filter")
	tail.Flags().StringVar(&f.EntityKind, "entity-kind", "", "entity kind")
	tail.Flags().StringVar(&f.EntityID, "entity-id", "", "entity id")
	audit.AddCommand(tail)
	return audit
}

func roleCmd() *cobra.Command {
	role := &cobra.Command{Use: "role", Short: "Grant and revoke judge roles"}
	for _, grant := range []bool{true, false} {
		grant := grant
		use, short := "grant <judge> <role>", "Grant a role"
		if !grant {
			use, short = "revoke <judge> <role>", "Revoke a role"
		}
		role.AddCommand(&cobra.Command{
			Use:   use,
			Short: short,
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
					var err error
					if grant {
						err = rt.Engine.GrantRole(ctx, args[0], args[1], judgeID())
					} else {
						err = rt.Engine.RevokeRole(ctx, args[0], args[1], judgeID())
					}
					if err != nil {
						return err
					}
					fmt.Println("ok")
					return nil
				})
			},
		})
	}
	return role
}

func whoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show roles and permissions of the acting judge",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				profile, err := rt.Engine.JudgeProfile(ctx, judgeID())
				if err != nil {
					return err
				}
				return printJSONOrTable(profile)
			})
		},
	}
}

func deviceKeyCmd() *cobra.Command {
	keys := &cobra.Command{Use: "device-key", Short: "Keys for scoring tablets"}
	var name string
	create := &cobra.Command{
		Use:   "create <judge>",
		Short: "Issue a device key; the key is shown once",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				plain, key, err := rt.Engine.CreateDeviceKey(ctx, args[0], name, judgeID())
				if err != nil {
					return err
				}
				return printJSONOrTable(map[string]any{"key": plain, "device_key": key})
			})
		},
	}
	create.Flags().StringVar(&name, "name", "", "device name")
	keys.AddCommand(create)
	return keys
}
