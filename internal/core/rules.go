package core

import "facilitycore/pkg/domain"

// NewDefaultRulesEngine builds a rules engine with the built-in invariant set.
func NewDefaultRulesEngine() *domain.RulesEngine {
	engine := domain.NewRulesEngine()
	engine.Register(NewLocationCycleRule())
	engine.Register(NewAssetTagUniqueRule())
	engine.Register(NewClosedStateRule())
	return engine
}
