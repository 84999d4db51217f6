package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Voupi/sistema-gestion-addag/internal/app/batch"
	"github.com/Voupi/sistema-gestion-addag/internal/app/lifecycle"
	"github.com/Voupi/sistema-gestion-addag/internal/app/photos"
	"github.com/Voupi/sistema-gestion-addag/internal/domain"
	"github.com/Voupi/sistema-gestion-addag/internal/photo"
	"github.com/Voupi/sistema-gestion-addag/internal/platform/runtime"
)

// runTransitions applies op to each id in order and stops at the first error.
func runTransitions(cmd *cobra.Command, ctx *commandContext, op lifecycle.Operation, ids []string) error {
	return ctx.withApp(cmd.Context(), func(app *runtime.App, kind domain.RecordKind) error {
		views := make([]transitionView, 0, len(ids))
		for _, id := range ids {
			res, err := app.Lifecycle.Transition(cmd.Context(), kind, domain.RecordID(id), op)
			if err != nil {
				return fmt.Errorf("%s %s: %w", op, id, err)
			}
			v := newTransitionView(res)
			views = append(views, v)
			if !ctx.jsonOutput() {
				fmt.Fprintln(cmd.OutOrStdout(), describeTransition(v))
			}
		}
		if ctx.jsonOutput() {
			return writeJSON(cmd, views)
		}
		return nil
	})
}

func newApproveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "approve <id>...",
		Short: "Approve pending records and assign card numbers",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTransitions(cmd, ctx, lifecycle.OpApprove, args)
		},
	}
}

func newTransitionCommand(ctx *commandContext) *cobra.Command {
	ops := make([]string, 0, len(lifecycle.Operations))
	for _, op := range lifecycle.Operations {
		if op != lifecycle.OpReject {
			ops = append(ops, string(op))
		}
	}
	return &cobra.Command{
		Use:       "transition <operation> <id>...",
		Short:     "Apply a workflow operation to records",
		Long:      "Operations: " + strings.Join(ops, ", "),
		Args:      cobra.MinimumNArgs(2),
		ValidArgs: ops,
		RunE: func(cmd *cobra.Command, args []string) error {
			op, err := lifecycle.ParseOperation(args[0])
			if err != nil {
				return err
			}
			if op == lifecycle.OpReject {
				return errors.New("use the reject command")
			}
			return runTransitions(cmd, ctx, op, args[1:])
		},
	}
}

func newRejectCommand(ctx *commandContext) *cobra.Command {
	var reason string

	cmd := &cobra.Command{
		Use:   "reject <id>",
		Short: "Reject a record, notify the applicant and archive it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd.Context(), func(app *runtime.App, kind domain.RecordKind) error {
				rej, err := app.Lifecycle.Reject(cmd.Context(), kind, domain.RecordID(args[0]), reason)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, map[string]string{
						"id":       string(rej.ID),
						"recordId": string(rej.RecordID),
						"reason":   rej.Reason,
					})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: rejected and archived as %s\n", rej.RecordID, rej.ID)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&reason, "reason", "r", "", "Reason sent to the applicant (required)")
	_ = cmd.MarkFlagRequired("reason")
	return cmd
}

func newBatchCommand(ctx *commandContext) *cobra.Command {
	var state string
	var search string
	var notify bool

	cmd := &cobra.Command{
		Use:   "batch <operation>",
		Short: "Apply a workflow operation to every matching record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			op, err := lifecycle.ParseOperation(args[0])
			if err != nil {
				return err
			}
			states, err := domain.ParseStateFilter(state)
			if err != nil {
				return err
			}
			req := batch.Request{Operation: op, States: states, Search: search}
			if cmd.Flags().Changed("notify") {
				req.Notify = &notify
			}
			return ctx.withApp(cmd.Context(), func(app *runtime.App, kind domain.RecordKind) error {
				req.Kind = kind
				res, err := app.Batch.Run(cmd.Context(), req)
				if err != nil {
					return err
				}
				v := newBatchView(res)
				if ctx.jsonOutput() {
					return writeJSON(cmd, v)
				}
				if v.NoOp {
					fmt.Fprintln(cmd.OutOrStdout(), "No matching records")
					return nil
				}
				rows := [][]string{
					{"Matched", itoa(v.Matched)},
					{"Affected", itoa(v.Affected)},
					{"Skipped", itoa(v.Skipped)},
					{"Notified", itoa(v.Notified)},
					{"Notify failed", itoa(v.NotifyFailed)},
					{"Without email", itoa(v.NotifySkipped)},
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{v.Operation, ""}, rows, []columnAlignment{alignLeft, alignRight}))
				for _, f := range v.Failures {
					fmt.Fprintln(cmd.ErrOrStderr(), f)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&state, "state", "s", "", "Restrict to these source states (default: all the operation accepts)")
	cmd.Flags().StringVarP(&search, "query", "q", "", "Text search over name, document and card number")
	cmd.Flags().BoolVar(&notify, "notify", false, "Force (true) or suppress (false) notifications; default follows policy")
	return cmd
}

func newCropCommand(ctx *commandContext) *cobra.Command {
	var in photos.CropInput

	cmd := &cobra.Command{
		Use:   "crop <id>",
		Short: "Render the print photo from the original upload",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd.Context(), func(app *runtime.App, kind domain.RecordKind) error {
				rec, err := app.Photos.ApplyCrop(cmd.Context(), kind, domain.RecordID(args[0]), in)
				if err != nil {
					return err
				}
				v := newRecordView(rec)
				if ctx.jsonOutput() {
					return writeJSON(cmd, v)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: print photo %s\n", v.ID, v.PrintPhotoURL)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&in.Crop.X, "x", 0, "Crop left edge in rotated pixels")
	cmd.Flags().IntVar(&in.Crop.Y, "y", 0, "Crop top edge in rotated pixels")
	cmd.Flags().IntVar(&in.Crop.Width, "width", photo.AspectWidth, "Crop width")
	cmd.Flags().IntVar(&in.Crop.Height, "height", photo.AspectHeight, "Crop height")
	cmd.Flags().IntVar(&in.Rotation, "rotation", 0, "Clockwise rotation in degrees (multiple of 90)")
	return cmd
}
