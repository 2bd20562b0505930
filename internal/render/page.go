package render

import (
	"bytes"
	"html/template"
	"io"

	"github.com/rotisserie/eris"
)

// Page is the standalone document showing every frame side by side.
type Page struct {
	Title  string
	Preset string
	Frames []PageFrame
	// FooterTop positions the footer below the tallest map, in pixels.
	FooterTop int
	// Live pages fetch and redraw the maps from the server on resize instead
	// of embedding them.
	Live bool
}

// PageFrame is one frame's container.
type PageFrame struct {
	Frame  string
	ID     string
	Markup template.HTML
}

// NewStaticPage embeds a rendered graphic's containers in a page.
func NewStaticPage(title string, res *Result, frames []string) (Page, error) {
	p := Page{Title: title, FooterTop: res.FooterTop}
	for _, frame := range frames {
		c := res.Container(frame)
		if c == nil || len(c.Children) == 0 {
			continue
		}
		var buf bytes.Buffer
		if err := WriteHTML(&buf, c.Children[0]); err != nil {
			return Page{}, err
		}
		p.Frames = append(p.Frames, PageFrame{
			Frame:  frame,
			ID:     ContainerID(frame),
			Markup: template.HTML(buf.String()), //nolint:gosec
		})
	}
	return p, nil
}

// NewLivePage returns a page whose maps are loaded from /maps.
func NewLivePage(title, preset string, frames []string) Page {
	p := Page{Title: title, Preset: preset, Live: true}
	for _, frame := range frames {
		p.Frames = append(p.Frames, PageFrame{Frame: frame, ID: ContainerID(frame)})
	}
	return p
}

// FrameNames lists the page's frames for the resize script.
func (p Page) FrameNames() []string {
	out := make([]string, 0, len(p.Frames))
	for _, f := range p.Frames {
		out = append(out, f.Frame)
	}
	return out
}

var pageTemplate = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Title}}</title>
<style>
body { font-family: Helvetica, Arial, sans-serif; margin: 0; position: relative; }
.frames { display: flex; flex-wrap: wrap; gap: 22px; padding: 11px; }
.frame { flex: 1 1 320px; }
.frame h3 { margin: 0 0 6px; font-size: 14px; }
.paths path { stroke: #fff; stroke-width: 0.25; }
.paths .states path { fill: none; stroke: #fff; stroke-width: 1; }
.graticules path { fill: none; stroke: #eee; }
.no-data { fill: #ebebeb; }
.quintile1 { fill: #eff3ff; }
.quintile2 { fill: #bdd7e7; }
.quintile3 { fill: #6baed6; }
.quintile4 { fill: #3182bd; }
.quintile5 { fill: #08519c; }
.scale-bar line { stroke: #666; stroke-width: 1; }
.scale-bar text, .labels text { font-size: 10px; fill: #666; }
.footer { position: absolute; left: 11px; font-size: 11px; color: #999; }
</style>
</head>
<body>
<div class="frames">
{{- range .Frames}}
<div class="frame">
<h3>{{.Frame}}</h3>
<div id="{{.ID}}" class="graphic">{{.Markup}}</div>
</div>
{{- end}}
</div>
<div class="footer" style="top: {{.FooterTop}}px">Source: Bureau of Labor Statistics, Quarterly Census of Employment and Wages</div>
{{- if .Live}}
<script>
(function() {
  var frames = {{.FrameNames}};
  var preset = {{.Preset}};
  var footer = document.querySelector('.footer');

  function throttle(fn, wait) {
    var last = 0, timer = null;
    return function() {
      var now = Date.now(), remaining = wait - (now - last);
      if (remaining <= 0) {
        last = now;
        fn();
      } else if (!timer) {
        timer = setTimeout(function() {
          last = Date.now();
          timer = null;
          fn();
        }, remaining);
      }
    };
  }

  function render() {
    frames.forEach(function(frame) {
      var el = document.getElementById('graphic' + frame);
      var width = Math.round(el.getBoundingClientRect().width) || 320;
      var url = 'maps/' + encodeURIComponent(frame) + '.svg?width=' + width;
      if (preset) {
        url += '&preset=' + encodeURIComponent(preset);
      }
      fetch(url).then(function(resp) {
        var top = resp.headers.get('X-Footer-Top');
        if (top) {
          footer.style.top = top + 'px';
        }
        return resp.text();
      }).then(function(svg) {
        el.innerHTML = '<div class="graphic-wrapper">' + svg.replace(/^<\?xml[^>]*>\s*/, '') + '</div>';
      });
    });
  }

  window.addEventListener('resize', throttle(render, 250));
  render();
})();
</script>
{{- end}}
</body>
</html>
`))

// WritePage renders the page document.
func WritePage(w io.Writer, p Page) error {
	if err := pageTemplate.Execute(w, p); err != nil {
		return eris.Wrap(err, "render: write page")
	}
	return nil
}
