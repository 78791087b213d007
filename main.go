package main

import (
	"os"

	"github.com/urfave/cli"
)

func main() {
	app := newApp()
	if err := app.Run(os.Args); err != nil {
		logger.Error(err)
		os.Exit(1)
	}
}

// sourceFlags select the environment every job reads from
var sourceFlags = []cli.Flag{
	cli.StringFlag{
		Name:  "source, s",
		Usage: "equirectangular panorama (png, jpg, bmp, tiff, webp or exr)",
	},
	cli.StringFlag{
		Name:  "cube",
		Usage: "directory with the six cube faces px, nx, py, ny, pz and nz",
	},
	cli.StringFlag{
		Name:  "gradient",
		Usage: "procedural sky as \"top,bottom\" hex colors, e.g. \"#87ceeb,#404040\"",
	},
}

// pipelineFlags configure the scheduler and the output target
var pipelineFlags = []cli.Flag{
	cli.StringFlag{
		Name:  "out, o",
		Value: "output",
		Usage: "output directory, or a .zip archive",
	},
	cli.IntFlag{
		Name:  "kernel-samples",
		Value: 512,
		Usage: "Monte-Carlo samples per texel and frame for convolutions",
	},
	cli.IntFlag{
		Name:  "workers",
		Value: 0,
		Usage: "number of parallel tile workers (0 = use CPU count)",
	},
	cli.IntFlag{
		Name:  "tile-size",
		Value: 32,
		Usage: "tile edge length for parallel frames",
	},
	cli.StringFlag{
		Name:  "convention",
		Value: "native",
		Usage: "cube face convention of the output target (native or mirrored)",
	},
}

func withFlags(groups ...[]cli.Flag) []cli.Flag {
	var flags []cli.Flag
	for _, g := range groups {
		flags = append(flags, g...)
	}
	return flags
}

func newApp() *cli.App {
	app := cli.NewApp()
	app.Name = "envmap-prefilter"
	app.Usage = "prefilter environment maps for image-based lighting"
	app.Version = "0.1.0"
	app.Flags = []cli.Flag{
		cli.BoolFlag{
			Name:  "v",
			Usage: "enable verbose logging",
		},
		cli.BoolFlag{
			Name:  "vv",
			Usage: "enable even more verbose logging",
		},
	}
	app.Commands = []cli.Command{
		{
			Name:  "convert",
			Usage: "reproject the source into cube, sphere or paraboloid maps",
			Description: `
Render one image per identifier. Identifiers have the form <family>-map-<face>
where family is cube, sphere or paraboloid and face is one of px, nx, py, ny,
pz or nz. Without identifiers all six faces of --family are rendered.`,
			ArgsUsage: "[identifier...]",
			Flags:     withFlags(sourceFlags, pipelineFlags, []cli.Flag{
				cli.StringFlag{
					Name:  "family",
					Value: "cube",
					Usage: "projection family rendered when no identifiers are given",
				},
				cli.IntFlag{
					Name:  "size",
					Value: 256,
					Usage: "output edge length in texels",
				},
				cli.IntFlag{
					Name:  "samples",
					Value: 4,
					Usage: "anti-aliasing frames per image",
				},
				cli.BoolFlag{
					Name:  "debug",
					Usage: "render ray directions instead of the source",
				},
			}),
			Action: convert,
		},
		{
			Name:  "specular",
			Usage: "render the prefiltered specular cubemap mip chain",
			Flags: withFlags(sourceFlags, pipelineFlags, []cli.Flag{
				cli.IntFlag{
					Name:  "size",
					Value: 256,
					Usage: "edge length of mip level 0",
				},
				cli.IntFlag{
					Name:  "levels",
					Value: 0,
					Usage: "number of mip levels (0 = full chain)",
				},
				cli.IntFlag{
					Name:  "samples",
					Value: 1,
					Usage: "anti-aliasing frames per mip face",
				},
			}),
			Action: specular,
		},
		{
			Name:  "diffuse",
			Usage: "render the diffuse irradiance cubemap",
			Flags: withFlags(sourceFlags, pipelineFlags, []cli.Flag{
				cli.IntFlag{
					Name:  "size",
					Value: 64,
					Usage: "output edge length in texels",
				},
				cli.IntFlag{
					Name:  "samples",
					Value: 1,
					Usage: "anti-aliasing frames per face",
				},
			}),
			Action: diffuse,
		},
		{
			Name:  "prefilter",
			Usage: "render the diffuse irradiance cubemap and the specular mip chain",
			Flags: withFlags(sourceFlags, pipelineFlags, []cli.Flag{
				cli.IntFlag{
					Name:  "size",
					Value: 256,
					Usage: "edge length of specular mip level 0",
				},
				cli.IntFlag{
					Name:  "diffuse-size",
					Value: 64,
					Usage: "edge length of the diffuse faces",
				},
				cli.IntFlag{
					Name:  "samples",
					Value: 1,
					Usage: "anti-aliasing frames per image",
				},
			}),
			Action: prefilter,
		},
		{
			Name:  "inspect",
			Usage: "describe the source, or the lookup behind one output texel",
			Description: `
Without --id, print the layout and size of the source. With --id, print the
uv, ray direction, source coordinate and color of texel (--x, --y) of a
--size output.`,
			Flags: withFlags(sourceFlags, []cli.Flag{
				cli.StringFlag{
					Name:  "id",
					Usage: "output identifier, e.g. sphere-map-pz",
				},
				cli.IntFlag{
					Name:  "size",
					Value: 256,
					Usage: "output edge length in texels",
				},
				cli.IntFlag{
					Name:  "x",
					Usage: "texel column",
				},
				cli.IntFlag{
					Name:  "y",
					Usage: "texel row",
				},
			}),
			Action: inspect,
		},
	}

	return app
}
