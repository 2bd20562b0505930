package render

import (
	"github.com/rotisserie/eris"

	"github.com/sells-group/wagemap/internal/geo"
	"github.com/sells-group/wagemap/internal/mapconfig"
	"github.com/sells-group/wagemap/internal/wages"
)

// ContainerID is the id of the element a frame's map is drawn into.
func ContainerID(frame string) string {
	return "graphic" + frame
}

// Graphic draws the map once per frame, each into its own container. The
// result's height is the tallest map's.
func Graphic(cfg mapconfig.TypeConfig, data map[string]*geo.Collection, table *wages.Table, width int, frames []string, opts Options) (*Result, error) {
	if len(frames) == 0 {
		return nil, eris.New("render: no frames")
	}
	root := El("div", "class", "graphics")
	out := &Result{Width: width, Root: root}
	for _, frame := range frames {
		res, err := Map(cfg, Instance{
			Container: ContainerID(frame),
			Width:     width,
			Data:      data,
			Frame:     frame,
		}, table, opts)
		if err != nil {
			return nil, eris.Wrapf(err, "render: frame %s", frame)
		}
		container := root.Append(El("div", "id", ContainerID(frame), "class", "graphic"))
		container.Append(res.Root)
		if res.Height > out.Height {
			out.Height = res.Height
			out.FooterTop = res.FooterTop
		}
	}
	return out, nil
}

// Container returns the element holding frame's map, or nil.
func (r *Result) Container(frame string) *Element {
	for _, child := range r.Root.Children {
		if id, _ := child.Get("id"); id == ContainerID(frame) {
			return child
		}
	}
	return nil
}
