package filler

import "github.com/formscout/formscout/api/schemas"

// controlClass is the fill strategy chosen for one task. It collapses the
// extractor's control kinds into the handful of distinct interaction shapes
// the executor knows.
type controlClass int

const (
	classPlainInput controlClass = iota
	classTextarea
	classRichText
	classNativeSelect
	classCustomSelect
	classFileUpload
)

// classifyControl picks the interaction shape for a descriptor.
func classifyControl(field schemas.FieldDescriptor) controlClass {
	switch field.ControlKind {
	case schemas.ControlFile:
		return classFileUpload
	case schemas.ControlSelect:
		return classNativeSelect
	case schemas.ControlCustomSelect:
		return classCustomSelect
	case schemas.ControlContentEditable:
		return classRichText
	case schemas.ControlTextarea:
		return classTextarea
	default:
		return classPlainInput
	}
}
