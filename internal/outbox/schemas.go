package outbox

const activityRecordedSchema = `{
  "type": "object",
  "title": "ActivityRecorded",
  "properties": {
    "activity_id": {"type": "string"},
    "username": {"type": "string"},
    "name": {"type": "string"},
    "sport": {"type": "string"},
    "start_time": {"type": "string", "format": "date-time"},
    "duration_sec": {"type": "integer"},
    "distance_m": {"type": "number"},
    "climb_m": {"type": "number"},
    "source": {"type": "string"},
    "version": {"type": "string"}
  },
  "required": ["activity_id", "username", "name", "sport", "start_time", "duration_sec", "source", "version"],
  "additionalProperties": false
}`

const activityUpdatedSchema = `{
  "type": "object",
  "title": "ActivityUpdated",
  "properties": {
    "activity_id": {"type": "string"},
    "username": {"type": "string"},
    "name": {"type": "string"},
    "sport": {"type": "string"},
    "updated_at": {"type": "string", "format": "date-time"}
  },
  "required": ["activity_id", "username", "name", "sport", "updated_at"],
  "additionalProperties": false
}`

const activityDeletedSchema = `{
  "type": "object",
  "title": "ActivityDeleted",
  "properties": {
    "activity_id": {"type": "string"},
    "username": {"type": "string"},
    "occurred_at": {"type": "string", "format": "date-time"}
  },
  "required": ["activity_id", "username", "occurred_at"],
  "additionalProperties": false
}`

const activityStateChangedSchema = `{
  "type": "object",
  "title": "ActivityStateChanged",
  "properties": {
    "activity_id": {"type": "string"},
    "username": {"type": "string"},
    "state": {"type": "string"},
    "occurred_at": {"type": "string", "format": "date-time"},
    "reason": {"type": "string"}
  },
  "required": ["activity_id", "username", "state", "occurred_at"],
  "additionalProperties": false
}`
