// Package factory builds pluggable modules from configuration entries of the
// form `{type: <name>, conf: {...}}`. Packages providing a module register a
// Factory under its type name, usually from init, and decode their settings
// with Decode:
//
//	sinks.MustRegister("influx", func(conf map[string]any) (metrics.MetricsSink, error) {
//	    var c struct {
//	        URL    string `json:"url"`
//	        Bucket string `json:"bucket"`
//	    }
//	    if err := factory.Decode(conf, &c); err != nil {
//	        return nil, err
//	    }
//	    return newInfluxSink(c.URL, c.Bucket), nil
//	})
//
// Type names are matched case-insensitively and misspelled settings are
// rejected.
package factory
