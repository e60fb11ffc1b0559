package action

import "errors"

var (
	// ErrDefect marks an internal inconsistency found while executing an
	// action that had passed validation.
	ErrDefect = errors.New("simulation defect")
	// ErrReentrant is returned when the pipeline is invoked from inside an
	// event handler or another pipeline call.
	ErrReentrant = errors.New("re-entrant pipeline call")
)

// Reason explains a rejection. Values are stable strings sent to clients.
type Reason string

const (
	ReasonNone           Reason = ""
	ReasonNoActor        Reason = "actor not found"
	ReasonQuarantined    Reason = "actor quarantined"
	ReasonWrongMode      Reason = "wrong mode"
	ReasonNotYourTurn    Reason = "not the active combatant"
	ReasonInsufficientAP Reason = "insufficient AP"
	ReasonNotAdjacent    Reason = "target not adjacent"
	ReasonNotLoaded      Reason = "target not loaded"
	ReasonBlocked        Reason = "target not walkable"
	ReasonNoTool         Reason = "no tool"
	ReasonToolBroken     Reason = "tool broken"
	ReasonNotDiggable    Reason = "tile cannot be dug"
	ReasonInvalidTarget  Reason = "invalid target"
	ReasonNotHostile     Reason = "target not hostile"
	ReasonOutOfRange     Reason = "target out of range"
	ReasonCannotAttack   Reason = "actor cannot attack"
	ReasonDefect         Reason = "internal error"
	ReasonReentrant      Reason = "re-entrant call"
)

// Outcome is the result of validating or processing an action.
type Outcome struct {
	Success bool
	Reason  Reason
}

var accepted = Outcome{Success: true}

func reject(r Reason) Outcome { return Outcome{Reason: r} }
