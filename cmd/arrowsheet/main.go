package main

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"olimpia/internal/scoring"
)

const (
	inputFlag    = "input"
	outputFlag   = "output"
	countFlag    = "count"
	modalityFlag = "modality"
	eventFlag    = "event"
	stdioCLIName = "-"
)

var version = "v0.1.0-dev"

func convert(in io.Reader, out io.Writer, sheet Sheet) error {
	archers, err := ParseSheet(in, sheet.ArrowCount)
	if err != nil {
		return err
	}
	Rank(archers)
	sheet.Archers = archers
	if sheet.Archers == nil {
		sheet.Archers = []Archer{}
	}
	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)
	if err := enc.Encode(&sheet); err != nil {
		return fmt.Errorf("encoding to YAML failed: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("encoding to YAML failed on close: %w", err)
	}
	return nil
}

func main() {
	var inputLocation, outputLocation string
	sheet := Sheet{}
	app := &cli.App{
		Name:    "arrowsheet",
		Usage:   "Turn archery classification score files into a ranked YAML sheet",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        inputFlag,
				Aliases:     []string{"i"},
				Usage:       "Score file with one \"athlete: arrows\" line per archer, or \"-\" for stdin",
				Value:       stdioCLIName,
				Destination: &inputLocation,
			},
			&cli.StringFlag{
				Name:        outputFlag,
				Aliases:     []string{"o"},
				Usage:       "Where to write the YAML sheet, a file path or \"-\" for stdout",
				Value:       stdioCLIName,
				Destination: &outputLocation,
			},
			&cli.IntFlag{
				Name:        countFlag,
				Aliases:     []string{"n"},
				Usage:       "Arrows per archer; missing arrows count as zero",
				Value:       scoring.DefaultClassificationArrows,
				Destination: &sheet.ArrowCount,
			},
			&cli.StringFlag{
				Name:        modalityFlag,
				Usage:       "Modality id written into the sheet",
				Destination: &sheet.Modality,
			},
			&cli.StringFlag{
				Name:        eventFlag,
				Usage:       "Event id written into the sheet",
				Destination: &sheet.Event,
			},
		},
		Action: func(cCtx *cli.Context) error {
			if sheet.ArrowCount < 0 || sheet.ArrowCount > 144 {
				return fmt.Errorf("invalid --%s %d: must be between 0 and 144", countFlag, sheet.ArrowCount)
			}
			var in io.Reader = os.Stdin
			if inputLocation != stdioCLIName {
				f, err := os.Open(inputLocation)
				if err != nil {
					return fmt.Errorf("open input: %w", err)
				}
				defer f.Close()
				in = f
			}
			var out io.Writer = os.Stdout
			if outputLocation != stdioCLIName {
				f, err := os.Create(outputLocation)
				if err != nil {
					return fmt.Errorf("create output: %w", err)
				}
				defer f.Close()
				out = f
			}
			return convert(in, out, sheet)
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
