package layout

import (
	"github.com/Aneesh-Raskar/vemeego/internal/roster"
	"github.com/Aneesh-Raskar/vemeego/internal/visibility"
)

// Tile is the render state of one participant tile.
type Tile struct {
	Identity string
	Name     string
	Local    bool
	Speaking bool
	Pinned   bool
	HasVideo bool
	HasAudio bool
}

// RenderPlan is everything a renderer needs for one frame.
type RenderPlan struct {
	Mode Mode
	// Hero is the identity in the hero slot; HeroScreen reports whether the
	// hero renders a screen share rather than a camera.
	Hero       string
	HeroScreen bool
	HeroTile   *Tile

	// Tiles is the primary grid in grid mode, the overflow strip otherwise.
	Tiles     []Tile
	Shape     Shape
	Page      int
	PageCount int

	Visible []string
}

// Plan builds the render plan for v under the machine's current mode.
func Plan(v visibility.View, m *Machine) RenderPlan {
	p := RenderPlan{
		Mode:    m.Mode(),
		Hero:    m.Hero(),
		Visible: v.Visible.Identities(),
	}

	if p.Mode == ModeGrid {
		p.Tiles = tiles(v.PrimaryWindow, v.Pinned)
		p.Shape = Solve(len(p.Tiles))
		p.Page = v.Primary.Page
		p.PageCount = v.Primary.PageCount(len(v.Eligible))
		return p
	}

	p.HeroScreen = p.Mode == ModePresenting
	if hero, ok := roster.Find(v.Ordered, p.Hero); ok {
		t := tile(hero, v.Pinned)
		p.HeroTile = &t
	}
	p.Tiles = tiles(v.OverflowWindow, v.Pinned)
	p.Page = v.Overflow.Page
	p.PageCount = v.Overflow.PageCount(len(v.Eligible))
	return p
}

func tiles(ps []roster.Participant, pinned string) []Tile {
	out := make([]Tile, 0, len(ps))
	for _, p := range ps {
		out = append(out, tile(p, pinned))
	}
	return out
}

func tile(p roster.Participant, pinned string) Tile {
	return Tile{
		Identity: p.Identity,
		Name:     p.DisplayName(),
		Local:    p.Local,
		Speaking: p.Speaking,
		Pinned:   p.Identity == pinned,
		HasVideo: p.HasVideo(),
		HasAudio: p.HasAudio(),
	}
}
