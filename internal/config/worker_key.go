package config

type WorkerKeyStruct struct {
	CertificateQueue        string
	CertificateDelayedQueue string
	CertificateDeadQueue    string
}

var WorkerKey = &WorkerKeyStruct{
	CertificateQueue:        "certificate_jobs_queue",
	CertificateDelayedQueue: "certificate_jobs_delayed",
	CertificateDeadQueue:    "certificate_jobs_dead",
}
