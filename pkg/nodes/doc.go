/*
Package nodes provides the standard node types.

Start types:

  - manual_start: triggered by hand; the keys of its "payload" setting become typed outputs.
  - webhook_start: triggered by an HTTP request on its "path".
  - event_start: triggered by a named event on an event bus.

Process types:

  - add: "value" plus the "value_to_add" setting, on "result".
  - passthrough: forwards "value"; the output adapts to the connected input type.
  - get_field: reads the "field" setting out of an object as an optional value.

End types:

  - log: writes the input to a structured logger.
  - record: keeps the input in a Recorder under the "key" setting.
*/
package nodes
