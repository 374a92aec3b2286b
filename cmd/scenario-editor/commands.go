package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/signalsfoundry/scenario-editor/editor"
	"github.com/signalsfoundry/scenario-editor/internal/store"
	"github.com/signalsfoundry/scenario-editor/model"
	"github.com/signalsfoundry/scenario-editor/orbit"
)

func newListCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored scenarios",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out, err := a.store.List(cmd.Context())
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME")
			for _, s := range out {
				fmt.Fprintf(tw, "%s\t%s\n", s.ID, s.Name)
			}
			return tw.Flush()
		},
	}
}

func newShowCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Print a stored scenario as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.store.Load(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			data, err := store.Encode(s)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return err
		},
	}
}

func newNewCommand(a *app) *cobra.Command {
	var template, id, name string
	cmd := &cobra.Command{
		Use:   "new",
		Short: "Create and save a scenario from a template",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			sess := a.newSession()
			defer sess.Close(ctx)

			if err := sess.New(ctx, template, id); err != nil {
				return err
			}
			if name != "" {
				sess.Rename(name)
			}
			if err := sess.Save(ctx); err != nil {
				return err
			}
			_, err := fmt.Fprintln(cmd.OutOrStdout(), sess.ID())
			return err
		},
	}
	cmd.Flags().StringVar(&template, "template", "empty-custom", "template name (see `templates`)")
	cmd.Flags().StringVar(&id, "id", "", "scenario key; a session key is generated when empty")
	cmd.Flags().StringVar(&name, "name", "", "display name")
	return cmd
}

func newDeleteCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a stored scenario",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.store.Delete(cmd.Context(), args[0])
		},
	}
}

func newApplyCommand(a *app) *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "apply <id> <script.json>",
		Short: "Replay an edit script against a scenario and save it",
		Long: `apply opens the scenario (a fresh one when the key is unknown), runs each
step of the script through an editing session exactly as interactive edits
would run, validates the result and saves it.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			f, err := os.Open(args[1])
			if err != nil {
				return err
			}
			defer f.Close()
			script, err := editor.ParseScript(f)
			if err != nil {
				return err
			}

			sess := a.newSession()
			if err := sess.Open(ctx, args[0]); err != nil {
				return err
			}
			if err := sess.Apply(script); err != nil {
				sess.Coordinator().Cancel(sess.ID())
				return err
			}
			if err := sess.Validate(); err != nil {
				sess.Coordinator().Cancel(sess.ID())
				return err
			}
			if dryRun {
				sess.Coordinator().Cancel(sess.ID())
			} else if err := sess.Save(ctx); err != nil {
				return err
			}
			if err := sess.Close(ctx); err != nil {
				return err
			}

			nodes, edges := sess.Graph().Counts()
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s: %d nodes, %d edges, %d history entries\n",
				sess.ID(), nodes, edges, sess.History().Len())
			return err
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "run and validate the script without saving")
	return cmd
}

func newTemplatesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "templates",
		Short: "List built-in scenario templates",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			for _, name := range model.TemplateNames() {
				if _, err := fmt.Fprintln(cmd.OutOrStdout(), name); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

type orbitReport struct {
	*orbit.Params
	SubPoint *orbit.SubPoint `json:"subPoint,omitempty"`
}

func newOrbitCommand() *cobra.Command {
	var tle, tleFile, kepler, at string
	var track bool
	cmd := &cobra.Command{
		Use:   "orbit",
		Short: "Derive period, apogee, perigee and mean motion",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			in, err := orbitInput(tle, tleFile, kepler)
			if err != nil {
				return err
			}
			params, err := orbit.Calculate(in)
			if err != nil {
				return err
			}
			if params == nil {
				return errors.New("no orbital input given: use --tle, --tle-file or --kepler")
			}
			report := orbitReport{Params: params}
			if track {
				t := time.Now().UTC()
				if at != "" {
					if t, err = time.Parse(time.RFC3339, at); err != nil {
						return fmt.Errorf("--at: %w", err)
					}
				}
				if report.SubPoint, err = orbit.GroundTrack(in, t); err != nil {
					return err
				}
			}
			return writeJSON(cmd.OutOrStdout(), report)
		},
	}
	cmd.Flags().StringVar(&tle, "tle", "", `two-line element set; separate lines with a newline or "|"`)
	cmd.Flags().StringVar(&tleFile, "tle-file", "", "file holding a two-line element set")
	cmd.Flags().StringVar(&kepler, "kepler", "", "Keplerian elements a,e,i[,raan,argp,nu] in km and degrees")
	cmd.Flags().BoolVar(&track, "ground-track", false, "also print the sub-satellite point")
	cmd.Flags().StringVar(&at, "at", "", "RFC 3339 time for --ground-track (default now)")
	return cmd
}

func orbitInput(tle, tleFile, kepler string) (orbit.Input, error) {
	switch {
	case tleFile != "":
		data, err := os.ReadFile(tleFile)
		if err != nil {
			return orbit.Input{}, err
		}
		return orbit.Input{Mode: model.InputTLE, TLE: string(data)}, nil
	case tle != "":
		return orbit.Input{Mode: model.InputTLE, TLE: strings.ReplaceAll(tle, "|", "\n")}, nil
	case kepler != "":
		parts := strings.Split(kepler, ",")
		if len(parts) < 3 || len(parts) > 6 {
			return orbit.Input{}, model.NewValidationError("kepler", "want 3 to 6 comma-separated values")
		}
		var k model.KeplerianElements
		dst := []**float64{&k.SemiMajorAxisKm, &k.Eccentricity, &k.InclinationDeg, &k.RAANDeg, &k.ArgPerigeeDeg, &k.TrueAnomalyDeg}
		for i, raw := range parts {
			p, err := model.ParseOptionalFloat("kepler", raw)
			if err != nil {
				return orbit.Input{}, err
			}
			model.ApplyFloat(dst[i], p)
		}
		return orbit.Input{Mode: model.InputKeplerian, Keplerian: k}, nil
	}
	return orbit.Input{}, nil
}

func newSpeedCommand() *cobra.Command {
	var altitude float64
	cmd := &cobra.Command{
		Use:   "speed",
		Short: "Circular orbital speed at an altitude",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if altitude < 0 {
				return model.NewValidationError("altitude", "must not be negative")
			}
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "%.1f km/h\n", orbit.CircularSpeedKmh(altitude))
			return err
		},
	}
	cmd.Flags().Float64Var(&altitude, "altitude", 550, "altitude above the surface in km")
	return cmd
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
