// Command somerge merges package summaries written by the analyzer with
// -summary-out into a whole program summary fed back with -summary-in.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"

	"github.com/sirkon/sizeoverflow/internal/lto"
	"github.com/sirkon/sizeoverflow/internal/registry"
	"github.com/sirkon/sizeoverflow/internal/soreport"
)

func main() {
	log := logrus.New()

	app := cli.NewApp()
	app.Name = "somerge"
	app.Usage = "merge size overflow summaries"
	app.Flags = []cli.Flag{
		cli.BoolFlag{Name: "verbose, v", Usage: "log merge conflicts"},
	}
	app.Before = func(c *cli.Context) error {
		if c.Bool("verbose") {
			log.SetLevel(logrus.DebugLevel)
		}
		return nil
	}
	app.Commands = []cli.Command{
		{
			Name:      "merge",
			Usage:     "merge package summaries into one",
			ArgsUsage: "SUMMARY...",
			Flags: []cli.Flag{
				cli.StringFlag{Name: "output, o", Value: "program.sosum", Usage: "file to write the merged summary into"},
				cli.StringFlag{Name: "policy", Value: lto.SuppressedWins.String(), Usage: "mark conflict policy: suppressed-wins or checked-wins"},
			},
			Action: func(c *cli.Context) error {
				var policy lto.Policy
				if err := policy.UnmarshalText([]byte(c.String("policy"))); err != nil {
					return err
				}
				if c.NArg() == 0 {
					return fmt.Errorf("no summaries given")
				}

				data, err := mergeFiles(c.Args(), policy, log)
				if err != nil {
					return err
				}
				if err := os.WriteFile(c.String("output"), data, 0o644); err != nil {
					return fmt.Errorf("write merged summary: %w", err)
				}
				return nil
			},
		},
		{
			Name:      "dump",
			Usage:     "print the nodes of a summary",
			ArgsUsage: "SUMMARY",
			Action: func(c *cli.Context) error {
				if c.NArg() != 1 {
					return fmt.Errorf("exactly one summary expected")
				}
				data, err := os.ReadFile(c.Args().First())
				if err != nil {
					return fmt.Errorf("read summary: %w", err)
				}
				return dump(os.Stdout, data)
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

// mergeFiles merges summaries in the given order.
func mergeFiles(paths []string, policy lto.Policy, log logrus.FieldLogger) ([]byte, error) {
	reg := registry.New(log)
	var reports soreport.Reporter
	m := &lto.Merger{
		Registry: reg,
		Policy:   policy,
		Reports:  reports.Phase(soreport.PhaseLTO),
		Log:      log,
	}

	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read summary: %w", err)
		}
		frag, err := lto.Read(data)
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
		added := m.Merge(frag)
		log.WithFields(logrus.Fields{
			"summary": path,
			"added":   added,
		}).Debug("merged")
	}

	reports.Log(log, nil)
	return lto.Write(reg)
}

func dump(w io.Writer, data []byte) error {
	frag, err := lto.Read(data)
	if err != nil {
		return err
	}

	for _, rec := range frag.Records {
		if _, err := fmt.Fprintf(w, "%s#%d %s", rec.Name, rec.Num, rec.Mark); err != nil {
			return err
		}
		if rec.Orig != nil {
			fmt.Fprintf(w, " orig=%s#%d", rec.Orig.Name, rec.Orig.Num)
		}
		for _, c := range rec.Children {
			fmt.Fprintf(w, " <- %s#%d", c.Name, c.Num)
		}
		fmt.Fprintln(w)
	}
	return nil
}
