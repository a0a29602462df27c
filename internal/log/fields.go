package log

// Field names shared by every component.
const (
	FieldComponent     = "component"
	FieldRequestID     = "request_id"
	FieldCorrelationID = "correlation_id"
	FieldClientIP      = "client_ip"
	FieldMethod        = "method"
	FieldPath          = "path"
	FieldQuery         = "query"
	FieldStatusCode    = "status_code"
	FieldDuration      = "duration_ms"
	FieldUserAgent     = "user_agent"
	FieldSuccess       = "success"
	FieldError         = "error"
	FieldErrorKind     = "error_kind"
	FieldOperation     = "operation"
	FieldBackend       = "backend"
	FieldYear          = "year"
	FieldStartYear     = "start_year"
	FieldEndYear       = "end_year"
	FieldCountry       = "country"
	FieldContinent     = "continent"
	FieldLimit         = "limit"
	FieldResults       = "results"
)

const (
	ComponentApp       = "app"
	ComponentHTTP      = "http"
	ComponentQuery     = "query"
	ComponentStorage   = "storage"
	ComponentSheets    = "sheets"
	ComponentAMQP      = "amqp"
	ComponentWorker    = "worker"
	ComponentImport    = "import"
	ComponentSecurity  = "security"
	ComponentRateLimit = "rate_limit"
	ComponentBackend   = "backend"
)

// Query operation names, shared by the HTTP and AMQP boundaries.
const (
	OpRankByYear        = "rank_by_year"
	OpTimeSeries        = "time_series"
	OpGrowthRates       = "growth_rates"
	OpListCountries     = "list_countries"
	OpListContinents    = "list_continents"
	OpExpenditureByYear = "expenditure_by_year"
	OpCountryHistory    = "country_history"
	OpContinentSummary  = "continent_summary"
	OpPing              = "ping"
	OpImport            = "import"
	OpMigrate           = "migrate"
	OpStartup           = "startup"
	OpShutdown          = "shutdown"
)

// LogFields is a small builder for structured attributes.
type LogFields map[string]any

func NewFields() LogFields {
	return make(LogFields)
}

func (f LogFields) WithComponent(component string) LogFields {
	f[FieldComponent] = component
	return f
}

func (f LogFields) WithClientIP(ip string) LogFields {
	f[FieldClientIP] = ip
	return f
}

func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// WithYears records a single year or a span; zero values are skipped.
func (f LogFields) WithYears(start, end int) LogFields {
	switch {
	case start != 0 && end != 0 && start != end:
		f[FieldStartYear] = start
		f[FieldEndYear] = end
	case start != 0:
		f[FieldYear] = start
	}
	return f
}

func (f LogFields) WithCountry(ref string) LogFields {
	f[FieldCountry] = ref
	return f
}

func (f LogFields) WithLimit(limit int) LogFields {
	if limit > 0 {
		f[FieldLimit] = limit
	}
	return f
}

func (f LogFields) WithHTTPRequest(method, path, query, userAgent string) LogFields {
	f[FieldMethod] = method
	f[FieldPath] = path
	if query != "" {
		f[FieldQuery] = query
	}
	if userAgent != "" {
		f[FieldUserAgent] = userAgent
	}
	return f
}

func (f LogFields) WithHTTPResponse(statusCode int, durationMs int64) LogFields {
	f[FieldStatusCode] = statusCode
	f[FieldDuration] = durationMs
	f[FieldSuccess] = statusCode < 400
	return f
}

// ToSlice flattens the fields into slog's alternating key/value form.
func (f LogFields) ToSlice() []any {
	slice := make([]any, 0, len(f)*2)
	for k, v := range f {
		if k == FieldComponent {
			continue
		}
		slice = append(slice, k, v)
	}
	return slice
}
