package export

import (
	"fmt"
	"math"
	"strings"

	"github.com/san-kum/gassim/internal/dynamo"
	"gonum.org/v1/gonum/spatial/r2"
)

// palette cycles per particle so paths stay distinguishable.
var palette = []string{"#00ff88", "#ff6b6b", "#4dabf7", "#ffd43b", "#cc5de8", "#ff922b", "#20c997", "#f06595"}

func header(sb *strings.Builder, side float64) {
	fmt.Fprintf(sb, `<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%.0f" height="%.0f" viewBox="0 0 %.0f %.0f">
<rect width="100%%" height="100%%" fill="#0a0a0a"/>
<rect x="0.5" y="0.5" width="%.1f" height="%.1f" fill="none" stroke="#555555"/>
`, side, side, side, side, side-1, side-1)
}

// toSVG maps box coordinates to pixels with y pointing up.
func toSVG(p r2.Vec, box, scale float64) (x, y float64) {
	return p.X * scale, (box - p.Y) * scale
}

// SnapshotSVG draws one snapshot: the box outline and every particle as a
// circle of the given radius. scale is pixels per box unit.
func SnapshotSVG(positions []r2.Vec, radius, box, scale float64) string {
	if box <= 0 || scale <= 0 {
		return ""
	}

	var sb strings.Builder
	header(&sb, box*scale)

	sb.WriteString(`<g fill="#00ff88" fill-opacity="0.8" stroke="#0a0a0a" stroke-width="0.5">` + "\n")
	for _, p := range positions {
		if math.IsNaN(p.X) || math.IsNaN(p.Y) {
			continue
		}
		cx, cy := toSVG(p, box, scale)
		fmt.Fprintf(&sb, `<circle cx="%.2f" cy="%.2f" r="%.2f"/>`+"\n", cx, cy, radius*scale)
	}
	sb.WriteString("</g>\n</svg>")
	return sb.String()
}

// PathsSVG draws the path of up to maxParticles particles over a trajectory,
// ending each path with a circle at its final position.
func PathsSVG(traj *dynamo.Trajectory, radius, box, scale float64, maxParticles int) string {
	if traj.Len() == 0 || box <= 0 || scale <= 0 {
		return ""
	}
	n := traj.Particles()
	if maxParticles > 0 && maxParticles < n {
		n = maxParticles
	}

	var sb strings.Builder
	header(&sb, box*scale)

	for i := 0; i < n; i++ {
		color := palette[i%len(palette)]
		fmt.Fprintf(&sb, `<path fill="none" stroke="%s" stroke-width="1" stroke-opacity="0.7" d="M`, color)
		for k, snap := range traj.Positions {
			x, y := toSVG(snap[i], box, scale)
			if k == 0 {
				fmt.Fprintf(&sb, "%.1f,%.1f", x, y)
			} else {
				fmt.Fprintf(&sb, " L%.1f,%.1f", x, y)
			}
		}
		sb.WriteString(`"/>` + "\n")

		last := traj.Positions[traj.Len()-1][i]
		cx, cy := toSVG(last, box, scale)
		fmt.Fprintf(&sb, `<circle cx="%.2f" cy="%.2f" r="%.2f" fill="%s"/>`+"\n", cx, cy, radius*scale, color)
	}

	sb.WriteString("</svg>")
	return sb.String()
}
