// Package cwlog runs the reqlog pipeline against Amazon CloudWatch Logs.
//
// It resolves where records go and with which credentials, builds the batching handler on top of a CloudWatch
// Logs client and wires everything into an fx application with tracing and a small settings API.
//
// # Environment
//
// Configuration is parsed from environment variables into [BaseEnvironment]. Embed it in your own struct to add
// application variables:
//
//	type Env struct {
//	    cwlog.BaseEnvironment
//	    DatabaseURL string `env:"DATABASE_URL,required"`
//	}
//
// # Destination
//
// [LogGroupRouter] names the log group "/<namespace>/<environment>". The environment comes from an optional
// [EnvironmentDetector], then from the variable named by REQLOG_ENV_VARIABLE, and is "local" otherwise. Only
// live, test and dev are recognized; every other name routes to local. REQLOG_LOG_GROUP overrides the result.
//
// # Credentials
//
// [CredentialResolver] looks for aws_access_key_id and aws_secret_access_key as explicit values, then as
// AWS_ACCESS_KEY_ID and AWS_SECRET_ACCESS_KEY, then in the secret store selected by REQLOG_SECRET_STORE. The
// client only gets static credentials when both resolve; otherwise the default AWS credential chain applies.
//
// # Delivery failures
//
// The handler returns failed deliveries to its caller. [NewLogger] catches them: the remote side is switched off
// for the rest of the process, the failure is logged locally and, when REQLOG_ALARM_QUEUE_URL is set, an alarm is
// published to SQS.
//
// # Application
//
//	cwlog.NewApp[Env](func(m *cwlog.Mux, api *cwlog.SettingsAPI) {
//	    api.Register(m)
//	    m.HandleFunc("GET /hello", func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
//	        cwlog.Log(ctx).Info("saying hello")
//	        _, err := io.WriteString(w, "hello")
//	        return err
//	    })
//	}).Run()
//
// Every main request is logged once with method, uri, user and client address. Records of the request carry the
// session id and the trace ids as extra metadata.
package cwlog
