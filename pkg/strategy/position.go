package strategy

import (
	"fmt"
)

// PositionManager manages open simulated positions, at most one per ticker
type PositionManager struct {
	positions map[string]*Position // ticker -> position
}

// NewPositionManager creates a new position manager
func NewPositionManager() *PositionManager {
	return &PositionManager{
		positions: make(map[string]*Position),
	}
}

// OpenPosition opens a position; it fails if the ticker already has one
func (pm *PositionManager) OpenPosition(pos *Position) error {
	if _, exists := pm.positions[pos.Ticker]; exists {
		return fmt.Errorf("position already open for %s", pos.Ticker)
	}
	pm.positions[pos.Ticker] = pos
	return nil
}

// ClosePosition removes and returns the position for a ticker
func (pm *PositionManager) ClosePosition(ticker string) *Position {
	position, exists := pm.positions[ticker]
	if !exists {
		return nil
	}

	delete(pm.positions, ticker)
	return position
}

// GetPosition returns a position for a ticker
func (pm *PositionManager) GetPosition(ticker string) (*Position, bool) {
	position, exists := pm.positions[ticker]
	return position, exists
}
