package id

import "github.com/google/uuid"

// Generator produces globally unique identifiers.
type Generator struct{}

func NewGenerator() *Generator { return &Generator{} }

func (Generator) NewID() string { return uuid.NewString() }
