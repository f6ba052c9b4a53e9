package main

type flagType int
type flagMap map[flagType]string

const (
	listenAddress flagType = iota
	servicePort
	controlPort
	enableTracing

	policiesFile
	templesFile
	notificationsFile

	dbHost
	dbUser
	dbPassword
	dbPort
	dbName
	dbSSLMode

	jwtSecret
	tokenExpiry
	adminEmails
	bcryptCost

	mapsAPIKey
	mapsRateLimit
)
