// Package status derives due-date and dependency views over a tile set.
package status

import (
	"time"

	"github.com/starford/tiledash/internal/due"
	"github.com/starford/tiledash/internal/models"
)

// Overdue returns tiles whose due date lies before today.
func Overdue(tiles []models.Tile, now time.Time) []models.Tile {
	return filter(tiles, func(t models.Tile) bool {
		info := due.Evaluate(t.DueDate, now)
		return info != nil && info.IsOverdue
	})
}

// DueSoon returns tiles due today or within the next due.DueSoonDays days.
func DueSoon(tiles []models.Tile, now time.Time) []models.Tile {
	return filter(tiles, func(t models.Tile) bool {
		info := due.Evaluate(t.DueDate, now)
		return info != nil && (info.IsDueToday || info.IsDueSoon)
	})
}

// BlockedBy returns the tiles that id depends on. Stale dependency ids are
// skipped.
func BlockedBy(tiles []models.Tile, id string) []models.Tile {
	byID := index(tiles)
	t, ok := byID[id]
	if !ok {
		return nil
	}
	var out []models.Tile
	for _, dep := range t.DependsOn {
		if d, ok := byID[dep]; ok {
			out = append(out, d)
		}
	}
	return out
}

// Blocking returns the tiles that list id in their DependsOn.
func Blocking(tiles []models.Tile, id string) []models.Tile {
	return filter(tiles, func(t models.Tile) bool {
		for _, dep := range t.DependsOn {
			if dep == id {
				return true
			}
		}
		return false
	})
}

// FindCycle reports whether giving tile id the dependencies dependsOn would
// close a cycle in the dependency graph. It returns the cycle as a path
// starting and ending at id, or nil when the graph stays acyclic.
func FindCycle(tiles []models.Tile, id string, dependsOn []string) []string {
	edges := make(map[string][]string, len(tiles)+1)
	for _, t := range tiles {
		edges[t.ID] = t.DependsOn
	}
	edges[id] = dependsOn

	visited := make(map[string]bool)
	var path []string
	var walk func(node string) bool
	walk = func(node string) bool {
		path = append(path, node)
		for _, next := range edges[node] {
			if next == id {
				path = append(path, id)
				return true
			}
			if visited[next] {
				continue
			}
			visited[next] = true
			if walk(next) {
				return true
			}
		}
		path = path[:len(path)-1]
		return false
	}
	visited[id] = true
	if walk(id) {
		return path
	}
	return nil
}

func filter(tiles []models.Tile, keep func(models.Tile) bool) []models.Tile {
	out := []models.Tile{}
	for _, t := range tiles {
		if keep(t) {
			out = append(out, t)
		}
	}
	return out
}

func index(tiles []models.Tile) map[string]models.Tile {
	m := make(map[string]models.Tile, len(tiles))
	for _, t := range tiles {
		m[t.ID] = t
	}
	return m
}
