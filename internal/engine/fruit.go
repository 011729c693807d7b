package engine

import "snakearena/internal/grid"

// fruitSlot is one of the N-1 fruit spawn slots GameState maintains
// (spec §3 spawn_timers, §4.1.1 step 6). A slot is either occupied by a
// fruit at Position, or empty and counting Timer up toward
// config.FruitSpawnDelayTicks. Slot identity — not just a flat fruit
// count — is what lets a freshly eaten fruit's slot reset its own
// timer independently of the others (spec §8 scenario 5).
type fruitSlot struct {
	Occupied bool
	Position grid.Position
	Timer    int
}
