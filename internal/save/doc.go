// Package save coordinates snapshot building, persistence, and loading
// for the game. It sits between the simulation's subsystems and the
// storage backend, delegating failures to the recovery engine so the
// game loop only ever sees a snapshot or a typed, actionable error.
package save
