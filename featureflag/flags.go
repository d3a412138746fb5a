package featureflag

type Flag string

const (
	FlagDisableInfection      Flag = "DISABLE_INFECTION"
	FlagDisableDeath          Flag = "DISABLE_DEATH"
	FlagDisableDeadRemoval    Flag = "DISABLE_DEAD_REMOVAL"
	FlagDisableObserverStream Flag = "DISABLE_OBSERVER_STREAM"
	FlagDisableHistory        Flag = "DISABLE_HISTORY"
)
