// Package sir defines SIR, the small SSA-like intermediate representation the
// size overflow engine works on.
//
// SIR only models what the engine needs to reason about integer data flow:
// values with integer types, the statements defining them, basic blocks and
// calls between functions. Host representations (go/ssa for the analyzer) are
// translated into SIR at the boundary; everything the host cannot express as
// integer arithmetic becomes an opaque input.
//
// Every Func is an arena: statements and values are addressed by small IDs that
// stay stable for the lifetime of the function, including statements removed
// from their block.
package sir
