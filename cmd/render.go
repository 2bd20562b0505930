package main

import (
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/wagemap/internal/dataset"
	"github.com/sells-group/wagemap/internal/mapconfig"
	"github.com/sells-group/wagemap/internal/render"
)

var (
	renderOut    string
	renderWidth  int
	renderPreset string
	renderTitle  string
)

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Write one SVG per frame and an index.html page",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initMapEnv(ctx, cfg)
		if err != nil {
			return err
		}
		defer env.Close()

		width := renderWidth
		if width == 0 {
			width = cfg.Render.Width
		}
		preset := renderPreset
		if preset == "" {
			preset = cfg.Map.Preset
		}

		files, err := writeStatic(env.Dataset, env.Presets, staticOptions{
			Dir:    renderOut,
			Width:  width,
			Preset: preset,
			Title:  renderTitle,
			Render: renderOptions(cfg),
		})
		if err != nil {
			return err
		}

		zap.L().Info("render complete",
			zap.String("out", renderOut),
			zap.Int("width", width),
			zap.String("preset", preset),
			zap.Strings("files", files),
		)
		return nil
	},
}

type staticOptions struct {
	Dir    string
	Width  int
	Preset string
	Title  string
	Render render.Options
}

// writeStatic draws every frame and writes graphic<frame>.svg plus index.html
// into opts.Dir. It returns the paths written.
func writeStatic(ds *dataset.Dataset, presets *mapconfig.Registry, opts staticOptions) ([]string, error) {
	mapCfg, err := presets.Configure(opts.Preset, opts.Width)
	if err != nil {
		return nil, err
	}
	res, err := render.Graphic(mapCfg, ds.Layers, ds.Wages, opts.Width, ds.Frames, opts.Render)
	if err != nil {
		return nil, eris.Wrap(err, "render graphic")
	}
	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return nil, eris.Wrapf(err, "create %s", opts.Dir)
	}

	var files []string
	for _, frame := range ds.Frames {
		container := res.Container(frame)
		if container == nil {
			return nil, eris.Errorf("no container drawn for frame %s", frame)
		}
		path := filepath.Join(opts.Dir, render.ContainerID(frame)+".svg")
		if err := writeFile(path, func(f *os.File) error { return render.WriteSVG(f, container) }); err != nil {
			return nil, err
		}
		files = append(files, path)
	}

	page, err := render.NewStaticPage(opts.Title, res, ds.Frames)
	if err != nil {
		return nil, err
	}
	index := filepath.Join(opts.Dir, "index.html")
	if err := writeFile(index, func(f *os.File) error { return render.WritePage(f, page) }); err != nil {
		return nil, err
	}
	return append(files, index), nil
}

func writeFile(path string, write func(*os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "create %s", path)
	}
	if err := write(f); err != nil {
		f.Close() //nolint:errcheck
		return eris.Wrapf(err, "write %s", path)
	}
	return eris.Wrapf(f.Close(), "close %s", path)
}

func init() {
	renderCmd.Flags().StringVar(&renderOut, "out", "dist", "output directory")
	renderCmd.Flags().IntVar(&renderWidth, "width", 0, "map width in pixels (default from config)")
	renderCmd.Flags().StringVar(&renderPreset, "preset", "", "map type preset (default from config)")
	renderCmd.Flags().StringVar(&renderTitle, "title", "County wage quintiles", "page title")
	rootCmd.AddCommand(renderCmd)
}
