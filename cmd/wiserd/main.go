// Command wiserd is the thin HTTP shell around internal/environment,
// grounded in the teacher's index/api/api.go (GET /search, PUT /index)
// and extended with GET /metrics and GET /healthz (SPEC_FULL.md §6).
package main

import (
	"context"
	"encoding/json"
	"flag"
	"io"
	"net/http"
	"strconv"
	"strings"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/wiser-go/wiser/internal/backup"
	"github.com/wiser-go/wiser/internal/cache"
	"github.com/wiser-go/wiser/internal/config"
	"github.com/wiser-go/wiser/internal/environment"
	"github.com/wiser-go/wiser/internal/events"
	"github.com/wiser-go/wiser/internal/metrics"
	"github.com/wiser-go/wiser/internal/store"
)

type response struct {
	Code int         `json:"code"`
	Msg  string      `json:"msg,omitempty"`
	Data interface{} `json:"data,omitempty"`
}

const (
	codeSuccess = iota
	codeFail
)

type server struct {
	env    *environment.Environment
	logger *zap.SugaredLogger
	reg    *metrics.Prometheus
}

func main() {
	port := flag.Uint("p", 8888, "listen port")
	configPath := flag.String("config", "", "path to a wiser.yaml config file")
	flag.Parse()

	logger, _ := zap.NewProduction()
	sugar := logger.Sugar()
	defer logger.Sync()

	fc := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			sugar.Fatalw("load config", "error", err)
		}
		fc = loaded
	}

	s, err := openStore(fc)
	if err != nil {
		sugar.Fatalw("open store", "error", err)
	}

	reg := metrics.NewPrometheus()
	opts := environment.Options{
		Store:   s,
		DBPath:  fc.DBPath,
		Cache:   cache.NewLRU(fc.PostingsCacheSize),
		Metrics: reg,
		Log:     sugar,
		Events:  buildPublisher(fc),
		Backup:  buildUploader(context.Background(), fc, sugar),
	}

	env, err := environment.Open(context.Background(), fc, opts)
	if err != nil {
		sugar.Fatalw("open environment", "error", err)
	}
	defer env.Close(context.Background())

	srv := &server{env: env, logger: sugar, reg: reg}
	mux := http.NewServeMux()
	mux.HandleFunc("/search", srv.searchHandler)
	mux.HandleFunc("/index", srv.indexHandler)
	mux.HandleFunc("/healthz", srv.healthzHandler)
	mux.Handle("/metrics", promhttp.HandlerFor(reg.Registry(), promhttp.HandlerOpts{}))

	sugar.Infow("listening", "port", *port)
	sugar.Fatal(http.ListenAndServe(":"+strconv.Itoa(int(*port)), mux))
}

func openStore(fc config.FileConfig) (store.Store, error) {
	switch config.StoreKind(fc.StoreKind) {
	case config.StorePostgres:
		return store.OpenPostgres(fc.DBPath)
	default:
		return store.OpenSQLite(fc.DBPath)
	}
}

func buildPublisher(fc config.FileConfig) events.Publisher {
	if len(fc.Kafka.Brokers) == 0 || fc.Kafka.Topic == "" {
		return events.NoopPublisher{}
	}
	return events.NewKafkaPublisher(fc.Kafka.Brokers, fc.Kafka.Topic)
}

func buildUploader(ctx context.Context, fc config.FileConfig, log *zap.SugaredLogger) backup.Uploader {
	if fc.Backup.Bucket == "" || fc.Backup.Key == "" {
		return backup.NoopUploader{}
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		log.Errorw("load aws config, backups disabled", "error", err)
		return backup.NoopUploader{}
	}
	return backup.NewS3Uploader(s3.NewFromConfig(awsCfg), fc.Backup.Bucket, fc.Backup.Key)
}

func (s *server) searchHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		write(w, http.StatusMethodNotAllowed, &response{Code: codeFail, Msg: "method not allowed"})
		return
	}
	query := r.FormValue("query")
	if strings.TrimSpace(query) == "" {
		write(w, http.StatusBadRequest, &response{Code: codeFail, Msg: "missing query"})
		return
	}
	results, err := s.env.Search.Search(r.Context(), query)
	if err != nil {
		write(w, http.StatusInternalServerError, &response{Code: codeFail, Msg: err.Error()})
		return
	}
	write(w, http.StatusOK, &response{Code: codeSuccess, Data: results})
}

func (s *server) indexHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		write(w, http.StatusMethodNotAllowed, &response{Code: codeFail, Msg: "method not allowed"})
		return
	}
	data, err := io.ReadAll(r.Body)
	if err != nil {
		write(w, http.StatusInternalServerError, &response{Code: codeFail, Msg: "read body"})
		return
	}
	var params map[string]string
	if err := json.Unmarshal(data, &params); err != nil {
		write(w, http.StatusBadRequest, &response{Code: codeFail, Msg: "json format error"})
		return
	}
	title, body := params["title"], params["body"]
	if title == "" {
		write(w, http.StatusBadRequest, &response{Code: codeFail, Msg: "missing title"})
		return
	}

	s.env.Lock()
	err = s.env.AddDocument(r.Context(), title, body)
	s.env.Unlock()
	if err != nil {
		write(w, http.StatusBadRequest, &response{Code: codeFail, Msg: err.Error()})
		return
	}
	write(w, http.StatusOK, &response{Code: codeSuccess})
}

func (s *server) healthzHandler(w http.ResponseWriter, r *http.Request) {
	if _, err := s.env.DocumentCount(r.Context()); err != nil {
		write(w, http.StatusServiceUnavailable, &response{Code: codeFail, Msg: err.Error()})
		return
	}
	write(w, http.StatusOK, &response{Code: codeSuccess, Msg: "ok"})
}

func write(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
