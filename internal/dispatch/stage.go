package dispatch

// Stage is the position of the runner in its run state machine.
type Stage string

const (
	StageIdle                Stage = "idle"
	StageLogisticsEnumerated Stage = "logistics_enumerated"
	StagePlanned             Stage = "planned"
	StageDistributed         Stage = "distributed"
	StagePlaced              Stage = "placed"
	StageWritten             Stage = "written"
)
