package cmd

import (
	"fmt"
	"io"
	"text/tabwriter"

	"butterfly/internal/analysis"
	"butterfly/internal/envelope"
	"butterfly/internal/render"
	"butterfly/internal/source"
	"butterfly/internal/tui"

	"github.com/spf13/cobra"
)

func newListCommand(options *Options) *cobra.Command {
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List available audio devices",
		RunE: func(cmd *cobra.Command, args []string) error {
			if options.Interactive {
				sel, err := tui.StartDeviceListUI(source.ListDevices)
				if err != nil {
					return err
				}
				if sel != nil {
					fmt.Fprintf(cmd.OutOrStdout(), "--source mic --device %d --sample-rate %.0f\n",
						sel.Device.ID, sel.SampleRate)
				}
				return nil
			}

			devices, err := source.ListDevices()
			if err != nil {
				return err
			}
			source.PrintDevices(cmd.OutOrStdout(), devices)
			return nil
		},
	}
	listCmd.Flags().BoolVarP(&options.Interactive, "interactive", "i", false,
		"Pick an input device and sample rate interactively")
	return listCmd
}

func newPresetsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "presets",
		Short: "List envelope presets, visual presets, color modes and windows",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			printPresets(cmd.OutOrStdout())
		},
	}
}

func printPresets(w io.Writer) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	defer tw.Flush()

	fmt.Fprintln(tw, "Envelope presets\tattack\trelease\tcurve")
	for _, p := range envelope.Presets {
		marker := ""
		if p.Name == envelope.DefaultPreset {
			marker = " (default)"
		}
		fmt.Fprintf(tw, "  %s%s\t%.2f\t%.2f\t%.1f\n", p.Name, marker, p.AttackTime, p.ReleaseTime, p.CurveShape)
	}

	fmt.Fprintln(tw, "\nVisual presets\tcolor mode\tsize")
	for i, p := range render.Presets {
		marker := ""
		if i == 0 {
			marker = " (default)"
		}
		fmt.Fprintf(tw, "  %s%s\t%v\t%.0f-%.0f\n", p.Name, marker, p.ColorMode, p.MinSize, p.MaxSize)
	}

	fmt.Fprintln(tw, "\nColor modes")
	for _, m := range []render.ColorMode{render.BrightnessMap, render.PhaseHue, render.FreqGradient} {
		fmt.Fprintf(tw, "  %v\n", m)
	}

	fmt.Fprintln(tw, "\nWindows")
	for _, wf := range []analysis.WindowFunc{
		analysis.None, analysis.Hann, analysis.Hamming, analysis.Blackman,
		analysis.BlackmanNuttall, analysis.BartlettHann, analysis.Lanczos, analysis.Nuttall,
	} {
		fmt.Fprintf(tw, "  %v\n", wf)
	}
}
