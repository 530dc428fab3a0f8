/*
Package ports defines the driven ports (interfaces) used by bpmgate.

These interfaces decouple the workflow gateway from the external process engine and
from the storage and delivery backends, so the same subscriber and HTTP API run against
Camunda over REST, the in-memory engine used in tests, Redis, SQLite or MongoDB.

# Key Interfaces

  - ProcessEngine: deploys BPMN, starts instances and reads or mutates engine state.
  - Hookable: engines that emit lifecycle events in-process.
  - AuditStore: persists the audit trail.
  - NotificationChannel: delivers notifications (log, Redis stream, memory).
  - DistributedLocker: serialises inbound events for a process instance across replicas.
  - UserRepository, ProductRepository: the primary and secondary catalog datasources.
*/
package ports
