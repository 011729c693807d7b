package protocol

import "snakearena/internal/engine"

// FromSnapshot converts an engine snapshot into its wire shape (spec §6
// "GameState wire shape").
func FromSnapshot(snap engine.Snapshot) GameStateWire {
	snakes := make(map[string]SnakeWire, len(snap.Snakes))
	for id, s := range snap.Snakes {
		snakes[id] = SnakeWire{
			Name:   s.Name,
			Color:  s.Color,
			Body:   FromGridPositions(s.Body),
			Length: s.Length,
			Alive:  s.Alive,
		}
	}
	var winner *string
	if snap.Winner != "" {
		w := snap.Winner
		winner = &w
	}
	return GameStateWire{
		Snakes:     snakes,
		Fruits:     FromGridPositions(snap.Fruits),
		Tick:       snap.Tick,
		IsRunning:  snap.Running,
		Winner:     winner,
		GridWidth:  snap.Size.W,
		GridHeight: snap.Size.H,
	}
}
