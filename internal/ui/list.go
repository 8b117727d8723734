package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/list"
)

var (
	_ list.Item = traitItem{}
)

const barWidth = 24

// traitItem wraps one personality vector component to implement [list.Item].
type traitItem struct {
	index int
	value float64
}

func (i traitItem) FilterValue() string { return i.Title() }
func (i traitItem) Title() string       { return fmt.Sprintf("Trait %d", i.index+1) }
func (i traitItem) Description() string {
	return fmt.Sprintf("%s %3.0f%%", styles.bar.Render(Bar(i.value, barWidth)), clamp(i.value)*100)
}

func traitItems(vector []float64) []list.Item {
	items := make([]list.Item, len(vector))
	for i, v := range vector {
		items[i] = traitItem{index: i, value: v}
	}
	return items
}

// Bar draws v (clamped to [0, 1]) as a bar width cells wide.
func Bar(v float64, width int) string {
	filled := int(clamp(v)*float64(width) + 0.5)
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

func clamp(v float64) float64 {
	return max(0, min(1, v))
}
