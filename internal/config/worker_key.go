package config

type WorkerKeyStruct struct {
	PersistSessionsQueue   string
	PersistViolationsQueue string
	PersistResultsQueue    string
}

var WorkerKey = &WorkerKeyStruct{
	PersistSessionsQueue:   "persist_sessions_queue",
	PersistViolationsQueue: "persist_violations_queue",
	PersistResultsQueue:    "persist_results_queue",
}
