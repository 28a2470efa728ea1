/*
Package mock provides fake object storage endpoints for testing

The structs defined here all implement the github.com/ibmjstart/swiftlystream/auth.Destination
interface and are therefore useful for testing any code that
reads sources from or uploads artifacts to a destination. It includes an
endpoint that does nothing, an endpoint that stores objects in memory, and an
endpoint that always generates errors.
*/
package mock
