/*
Copyright © 2025 the GAEZcal authors.
This file is part of GAEZcal.

GAEZcal is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

GAEZcal is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with GAEZcal.  If not, see <http://www.gnu.org/licenses/>.
*/

// Package gaezcalutil holds the configuration and command-line
// interface for the GAEZcal aggregation pipeline.
package gaezcalutil

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/cropmodel/gaezcal"
)

// Cfg holds configuration information.
var Cfg *viper.Viper

var options []struct {
	name, usage, shorthand string
	defaultVal             interface{}
	flagsets               []*pflag.FlagSet
}

func init() {
	options = []struct {
		name, usage, shorthand string
		defaultVal             interface{}
		flagsets               []*pflag.FlagSet
	}{
		{
			name: "config",
			usage: `
              config specifies the configuration file location.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "LogLevel",
			usage: `
              LogLevel sets the logging verbosity (debug, info, warning, error).`,
			defaultVal: "info",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "BucketURL",
			usage: `
              BucketURL is the blob storage location holding the GAEZ v5
              source rasters, in the form provider://bucket/prefix where
              provider is one of file, gs, or s3.`,
			defaultVal: "gs://fao-gismgr-gaez-v5-data/DATA/GAEZ-V5/MAPSET",
			flagsets:   []*pflag.FlagSet{runCmd.PersistentFlags(), areaCmd.Flags()},
		},
		{
			name: "CropMappingFile",
			usage: `
              CropMappingFile is the path to the CSV table defining
              crop-group membership.`,
			defaultVal: "data/gaez_v5_crop_mapper.csv",
			flagsets:   []*pflag.FlagSet{runCmd.PersistentFlags(), areaCmd.Flags()},
		},
		{
			name: "CalorieMappingFile",
			usage: `
              CalorieMappingFile is the path to the CSV table of calorie
              factors per crop group.`,
			defaultVal: "data/gaezv5_cal_mapping.csv",
			flagsets:   []*pflag.FlagSet{runCmd.PersistentFlags(), areaCmd.Flags()},
		},
		{
			name: "OutputDir",
			usage: `
              OutputDir is the directory that output rasters are written to.`,
			defaultVal: "outputs",
			flagsets:   []*pflag.FlagSet{runCmd.PersistentFlags(), areaCmd.Flags()},
		},
		{
			name: "CacheDir",
			usage: `
              CacheDir, if set, is a directory for a persistent cache of
              decoded source rasters, useful when re-running combinations
              that share inputs.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{runCmd.PersistentFlags(), areaCmd.Flags()},
		},
		{
			name: "Workers",
			usage: `
              Workers is the number of concurrent raster-load workers.`,
			defaultVal: 1,
			flagsets:   []*pflag.FlagSet{runCmd.PersistentFlags(), areaCmd.Flags()},
		},
		{
			name: "Overwrite",
			usage: `
              Overwrite re-creates output rasters that already exist.`,
			defaultVal: false,
			flagsets:   []*pflag.FlagSet{runCmd.PersistentFlags(), areaCmd.Flags()},
		},
		{
			name: "YieldVariables",
			usage: `
              YieldVariables are the yield variable families to process.`,
			defaultVal: []string{"RES05-YCX"},
			flagsets:   []*pflag.FlagSet{runCmd.PersistentFlags()},
		},
		{
			name: "WaterCodes",
			usage: `
              WaterCodes are the yield water/input regime codes to process.
              Low-input regimes (LILM, LRLM) exist for only some crops.`,
			defaultVal: []string{gaezcal.HighInputIrrigated, gaezcal.HighInputRainfed},
			flagsets:   []*pflag.FlagSet{runCmd.PersistentFlags(), areaCmd.Flags()},
		},
		{
			name: "Scenarios",
			usage: `
              Scenarios are the climate scenarios to process. HIST uses the
              historical periods and models; all others use the future ones.`,
			defaultVal: []string{"HIST", "SSP126", "SSP370", "SSP585"},
			flagsets:   []*pflag.FlagSet{runCmd.PersistentFlags()},
		},
		{
			name: "HistoricalPeriods",
			usage: `
              HistoricalPeriods are the time periods of the historical scenario.`,
			defaultVal: []string{"HP8100", "HP0120"},
			flagsets:   []*pflag.FlagSet{runCmd.PersistentFlags()},
		},
		{
			name: "HistoricalModels",
			usage: `
              HistoricalModels are the climate-model tokens of the historical
              scenario.`,
			defaultVal: []string{"AGERA5"},
			flagsets:   []*pflag.FlagSet{runCmd.PersistentFlags()},
		},
		{
			name: "FuturePeriods",
			usage: `
              FuturePeriods are the time periods of the future scenarios.`,
			defaultVal: []string{"FP2140", "FP4160", "FP6180", "FP8100"},
			flagsets:   []*pflag.FlagSet{runCmd.PersistentFlags()},
		},
		{
			name: "FutureModels",
			usage: `
              FutureModels are the climate-model tokens of the future scenarios.`,
			defaultVal: []string{"ENSEMBLE"},
			flagsets:   []*pflag.FlagSet{runCmd.PersistentFlags()},
		},
		{
			name: "Dataset.Dir",
			usage: `
              Dataset.Dir is the directory holding the per-request output
              rasters to collect.`,
			defaultVal: "outputs/har_area",
			flagsets:   []*pflag.FlagSet{datasetCmd.Flags()},
		},
		{
			name: "Dataset.Prefix",
			usage: `
              Dataset.Prefix selects the files to collect: Dataset.Dir/<prefix>_*.nc.`,
			defaultVal: "har_area",
			flagsets:   []*pflag.FlagSet{datasetCmd.Flags()},
		},
		{
			name: "Dataset.OutputFile",
			usage: `
              Dataset.OutputFile is the path of the combined dataset to write.`,
			defaultVal: "har_area.nc",
			flagsets:   []*pflag.FlagSet{datasetCmd.Flags()},
		},
		{
			name: "Dataset.Units",
			usage: `
              Dataset.Units is the unit attribute of the collected variables
              (ha for harvested area, kcal for calorie yield).`,
			defaultVal: "ha",
			flagsets:   []*pflag.FlagSet{datasetCmd.Flags()},
		},
		{
			name: "Dataset.ClampNegatives",
			usage: `
              Dataset.ClampNegatives sets negative cells to zero when
              collecting.`,
			defaultVal: true,
			flagsets:   []*pflag.FlagSet{datasetCmd.Flags()},
		},
	}

	Cfg = viper.New()

	// Set the prefix for configuration environment variables.
	Cfg.SetEnvPrefix("GAEZCAL")

	for _, option := range options {
		for i, set := range option.flagsets {
			if i != 0 { // We don't want to create the same flag twice.
				set.AddFlag(option.flagsets[0].Lookup(option.name))
				continue
			}
			switch v := option.defaultVal.(type) {
			case string:
				if option.shorthand == "" {
					set.String(option.name, v, option.usage)
				} else {
					set.StringP(option.name, option.shorthand, v, option.usage)
				}
			case []string:
				if option.shorthand == "" {
					set.StringSlice(option.name, v, option.usage)
				} else {
					set.StringSliceP(option.name, option.shorthand, v, option.usage)
				}
			case bool:
				if option.shorthand == "" {
					set.Bool(option.name, v, option.usage)
				} else {
					set.BoolP(option.name, option.shorthand, v, option.usage)
				}
			case int:
				if option.shorthand == "" {
					set.Int(option.name, v, option.usage)
				} else {
					set.IntP(option.name, option.shorthand, v, option.usage)
				}
			default:
				panic("invalid argument type")
			}
			Cfg.BindPFlag(option.name, set.Lookup(option.name))
		}
	}
}

func init() {
	// Link the commands together.
	Root.AddCommand(versionCmd)
	Root.AddCommand(runCmd)
	Root.AddCommand(areaCmd)
	Root.AddCommand(datasetCmd)
}

// setConfig finds and reads in the configuration file, if there is one.
func setConfig() error {
	if cfgpath := Cfg.GetString("config"); cfgpath != "" {
		Cfg.SetConfigFile(cfgpath)
		if err := Cfg.ReadInConfig(); err != nil {
			return fmt.Errorf("gaezcal: problem reading configuration file: %v", err)
		}
	}
	return nil
}

// Log returns a logger at the configured level.
func Log() (*logrus.Logger, error) {
	level, err := logrus.ParseLevel(Cfg.GetString("LogLevel"))
	if err != nil {
		return nil, fmt.Errorf("gaezcal: parsing LogLevel: %v", err)
	}
	log := logrus.StandardLogger()
	log.SetLevel(level)
	return log, nil
}

// Root is the main command.
var Root = &cobra.Command{
	Use:   "gaezcal",
	Short: "Calorie-yield aggregation of GAEZ v5 rasters.",
	Long: `gaezcal converts GAEZ v5 crop yield and harvested-area rasters into
per-cell calorie-yield and total-harvested-area rasters, aggregated
across crop groups and water-supply regimes.

Configuration can be changed by using a configuration file (and providing the
path to the file using the --config flag), by using command-line arguments,
or by setting environment variables in the format 'GAEZCAL_var' where 'var'
is the name of the variable to be set.`,
	DisableAutoGenTag: true,
	PersistentPreRunE: func(*cobra.Command, []string) error { return setConfig() },
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Long:  "version prints the version number of this version of GAEZcal.",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Printf("GAEZcal v%s\n", Version)
	},
	DisableAutoGenTag: true,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Build calorie-yield rasters",
	Long: `run builds one calorie-yield raster per combination of yield variable
family, time period, climate model, scenario, and water regime, summed
across all crop groups. Outputs that already exist are skipped unless
--Overwrite is set.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := NewPipeline(cmd.Context())
		if err != nil {
			return err
		}
		return p.Run(cmd.Context())
	},
	DisableAutoGenTag: true,
}

var areaCmd = &cobra.Command{
	Use:   "area",
	Short: "Build total harvested-area rasters",
	Long: `area builds one total harvested-area raster per water regime, summed
across all crop groups.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := NewPipeline(cmd.Context())
		if err != nil {
			return err
		}
		return p.RunArea(cmd.Context())
	},
	DisableAutoGenTag: true,
}

var datasetCmd = &cobra.Command{
	Use:   "dataset",
	Short: "Collect output rasters into one dataset file",
	Long: `dataset collects the previously built per-request rasters matching
Dataset.Dir/<Dataset.Prefix>_*.nc into a single multi-variable NetCDF file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return gaezcal.BuildDataset(
			os.ExpandEnv(Cfg.GetString("Dataset.Dir")),
			Cfg.GetString("Dataset.Prefix"),
			os.ExpandEnv(Cfg.GetString("Dataset.OutputFile")),
			Cfg.GetString("Dataset.Units"),
			Cfg.GetBool("Dataset.ClampNegatives"),
		)
	},
	DisableAutoGenTag: true,
}
