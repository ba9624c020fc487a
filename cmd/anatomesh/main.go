// Command anatomesh converts anatomical structures between surface
// meshes and volumetric representations: a mesh file becomes a solid
// voxel occupancy grid, and a stack of slice images (or a stored grid)
// becomes a triangulated surface.
package main

import (
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"anatomesh/pkg/config"
	"anatomesh/pkg/isosurface"
	"anatomesh/pkg/pipeline"
)

var (
	cfgPath string
	verbose bool
	cfg     *config.Config
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "anatomesh",
		Short: "bidirectional mesh and voxel volume conversion",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.LoadConfig(cfgPath)
			if err != nil {
				return err
			}
			log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
			if verbose || cfg.Processing.Verbose {
				log.SetLevel(log.DebugLevel)
			}
			return nil
		},
	}
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "anatomesh.yaml", "path to the YAML configuration file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(cmdVoxelize(), cmdReconstruct(), cmdInitConfig())

	if err := rootCmd.Execute(); err != nil {
		log.Error(err)
		os.Exit(1)
	}
}

func cmdVoxelize() *cobra.Command {
	var (
		output      string
		pitch       float64
		partial     bool
		projections bool
	)
	cmd := &cobra.Command{
		Use:   "voxelize <mesh-file>",
		Short: "convert a surface mesh into a solid voxel occupancy grid",
		Long: "loads an STL or OBJ surface mesh, repairs boundary holes, rasterizes the\n" +
			"surface into cubic voxels of the given pitch, fills the interior and writes\n" +
			"the result as a compressed grid artifact",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if pitch <= 0 {
				pitch = cfg.Voxelize.Pitch
			}
			v := pipeline.NewVoxelizer(&pipeline.VoxelizeParams{
				InputFile:          args[0],
				OutputFile:         output,
				Pitch:              pitch,
				MaxGridCells:       cfg.Voxelize.MaxGridCells,
				NumCores:           cfg.Processing.NumCores,
				AllowPartialRepair: partial || cfg.Voxelize.AllowPartialRepair,
				SaveProjections:    projections || cfg.Output.SaveProjections,
			})
			return v.Process()
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "grid.avxg", "output grid artifact path")
	cmd.Flags().Float64VarP(&pitch, "pitch", "p", 0, "voxel edge length in world units (default from config)")
	cmd.Flags().BoolVar(&partial, "allow-partial-repair", false, "voxelize even when the mesh cannot be fully closed")
	cmd.Flags().BoolVar(&projections, "projections", false, "write per-axis maximum-intensity projection previews")
	return cmd
}

func cmdReconstruct() *cobra.Command {
	var (
		output   string
		fromGrid bool
		iso      float64
		gap      float64
	)
	cmd := &cobra.Command{
		Use:   "reconstruct <slice-dir | grid-file>",
		Short: "extract a surface mesh from a slice stack or a stored grid",
		Long: "assembles a directory of PNG/JPEG slice images into a scalar volume and\n" +
			"extracts the iso-surface as a triangle mesh; with --from-grid the input is a\n" +
			"grid artifact written by voxelize instead",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if iso <= 0 {
				iso = cfg.Reconstruct.IsoValue
			}
			if gap <= 0 {
				gap = cfg.Reconstruct.SliceGap
			}
			if fromGrid {
				return pipeline.GridToMesh(args[0], output, isosurface.Options{
					WeldTolerance: cfg.Reconstruct.WeldTolerance,
					Workers:       cfg.Processing.NumCores,
				}, nil)
			}
			r := pipeline.NewReconstructor(&pipeline.ReconstructParams{
				InputDir:         args[0],
				OutputFile:       output,
				SliceGap:         gap,
				IsoValue:         iso,
				SpacingTolerance: cfg.Reconstruct.SpacingTolerance,
				WeldTolerance:    cfg.Reconstruct.WeldTolerance,
				NumCores:         cfg.Processing.NumCores,
			})
			return r.Process()
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "surface.stl", "output mesh path (.stl, .obj or .glb)")
	cmd.Flags().BoolVar(&fromGrid, "from-grid", false, "treat the input as a grid artifact")
	cmd.Flags().Float64Var(&iso, "iso", 0, "iso-value on the normalized intensity scale (default from config)")
	cmd.Flags().Float64Var(&gap, "slice-gap", 0, "distance between consecutive slices (default from config)")
	return cmd
}

func cmdInitConfig() *cobra.Command {
	return &cobra.Command{
		Use:   "init-config",
		Short: "write a default configuration file",
		Args:  cobra.ExactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.CreateDefaultConfigFile(cfgPath); err != nil {
				return err
			}
			log.WithField("path", cfgPath).Info("default configuration written")
			return nil
		},
	}
}
