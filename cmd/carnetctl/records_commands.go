package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Voupi/sistema-gestion-addag/internal/app/applicants"
	"github.com/Voupi/sistema-gestion-addag/internal/domain"
	"github.com/Voupi/sistema-gestion-addag/internal/platform/runtime"
)

func printRecords(cmd *cobra.Command, ctx *commandContext, recs []domain.ApplicantRecord) error {
	if ctx.jsonOutput() {
		views := make([]recordView, 0, len(recs))
		for _, r := range recs {
			views = append(views, newRecordView(r))
		}
		return writeJSON(cmd, views)
	}
	if len(recs) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No records")
		return nil
	}
	fmt.Fprintln(cmd.OutOrStdout(), renderTable(recordHeaders, recordRows(recs), nil))
	return nil
}

func newListCommand(ctx *commandContext) *cobra.Command {
	var state string
	var search string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List records, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			states, err := domain.ParseStateFilter(state)
			if err != nil {
				return err
			}
			return ctx.withApp(cmd.Context(), func(app *runtime.App, kind domain.RecordKind) error {
				recs, err := app.Applicants.List(cmd.Context(), kind, applicants.Query{States: states, Search: search})
				if err != nil {
					return err
				}
				return printRecords(cmd, ctx, recs)
			})
		},
	}
	cmd.Flags().StringVarP(&state, "state", "s", "", "State filter: TODOS, EN_COLA or a comma separated list")
	cmd.Flags().StringVarP(&search, "query", "q", "", "Text search over name, document and card number")
	return cmd
}

func newQueueCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "queue",
		Short: "Show the print queue ordered by last name",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd.Context(), func(app *runtime.App, kind domain.RecordKind) error {
				recs, err := app.Applicants.PrintQueue(cmd.Context(), kind)
				if err != nil {
					return err
				}
				return printRecords(cmd, ctx, recs)
			})
		},
	}
}

func newShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd.Context(), func(app *runtime.App, kind domain.RecordKind) error {
				rec, err := app.Applicants.Get(cmd.Context(), kind, domain.RecordID(args[0]))
				if err != nil {
					return err
				}
				v := newRecordView(rec)
				if ctx.jsonOutput() {
					return writeJSON(cmd, v)
				}
				rows := [][]string{
					{"ID", v.ID},
					{"Kind", v.Kind},
					{"Name", v.Name},
					{"Document", v.DocumentType + " " + v.DocumentNumber},
					{"Email", dash(v.Email)},
					{"Phone", v.Phone},
					{"Department", v.Department},
					{"Role", dash(v.Role)},
					{"State", v.State},
					{"Card", dash(v.CardNumber)},
					{"Photo", v.PrintPhotoURL},
					{"Submitted", v.CreatedAt.Format("2006-01-02 15:04")},
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Field", "Value"}, rows, nil))
				return nil
			})
		},
	}
}

func newStatsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Count records per state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd.Context(), func(app *runtime.App, kind domain.RecordKind) error {
				st, err := app.Applicants.Stats(cmd.Context(), kind)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					counts := make(map[string]int, len(domain.States))
					for _, s := range domain.States {
						counts[string(s)] = st.Counts[s]
					}
					return writeJSON(cmd, map[string]any{
						"kind":    kind.Slug(),
						"counts":  counts,
						"inQueue": st.InQueue,
						"total":   st.Total,
					})
				}
				rows := make([][]string, 0, len(domain.States)+2)
				for _, s := range domain.States {
					rows = append(rows, []string{string(s), itoa(st.Counts[s])})
				}
				rows = append(rows, []string{domain.FilterInQueue, itoa(st.InQueue)}, []string{"TOTAL", itoa(st.Total)})
				fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"State", "Records"}, rows, []columnAlignment{alignLeft, alignRight}))
				return nil
			})
		},
	}
}

func newRejectionsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "rejections",
		Short: "List archived rejections, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd.Context(), func(app *runtime.App, kind domain.RecordKind) error {
				rejs, err := app.Applicants.Rejections(cmd.Context(), kind)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					type rejectionView struct {
						ID             string `json:"id"`
						RecordID       string `json:"recordId"`
						Name           string `json:"name"`
						DocumentNumber string `json:"documentNumber"`
						Reason         string `json:"reason"`
						RejectedAt     string `json:"rejectedAt"`
					}
					out := make([]rejectionView, 0, len(rejs))
					for _, r := range rejs {
						out = append(out, rejectionView{
							ID:             string(r.ID),
							RecordID:       string(r.RecordID),
							Name:           domain.NormalizeHumanName(r.FirstNames + " " + r.LastNames),
							DocumentNumber: r.DocumentNumber,
							Reason:         r.Reason,
							RejectedAt:     r.RejectedAt.Format("2006-01-02T15:04:05Z07:00"),
						})
					}
					return writeJSON(cmd, out)
				}
				if len(rejs) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No rejections")
					return nil
				}
				rows := make([][]string, 0, len(rejs))
				for _, r := range rejs {
					rows = append(rows, []string{
						string(r.RecordID),
						domain.NormalizeHumanName(r.FirstNames + " " + r.LastNames),
						r.DocumentNumber,
						r.Reason,
						r.RejectedAt.Format("2006-01-02 15:04"),
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Record", "Name", "Document", "Reason", "Rejected"}, rows, nil))
				return nil
			})
		},
	}
}
