package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/okian/xscaffold/internal/adapters/http/api"
	service "github.com/okian/xscaffold/internal/app"
	"github.com/okian/xscaffold/internal/domain/model"
	"github.com/okian/xscaffold/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

const workedExample = `"score_percentage": 72.5, "hard_question_accuracy": 65, "hint_usage_percentage": 18,
	"avg_confidence": 3.8, "answer_changes_rate": 0.35, "tab_switches_rate": 0.9,
	"avg_time_per_question": 85, "review_percentage": 40, "avg_first_action_latency": 4.5,
	"clicks_per_question": 4.2, "performance_trend": 8`

func do(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode(w *httptest.ResponseRecorder) map[string]any {
	var out map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		panic(err)
	}
	return out
}

func TestServer_Routes(t *testing.T) {
	Convey("Given a server backed by the scoring service", t, func() {
		svc, err := service.New()
		So(err, ShouldBeNil)
		router := api.NewServer(svc).Router()

		Convey("When checking health", func() {
			w := do(router, "GET", "/healthz", "")

			Convey("Then it reports the features and classes", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				body := decode(w)
				So(body["status"], ShouldEqual, "healthy")
				So(body["features_count"], ShouldEqual, 11.0)
				So(body["classes"], ShouldResemble, []any{"at_risk", "developing", "proficient", "advanced"})
			})
		})

		Convey("When scoring the worked example", func() {
			w := do(router, "POST", "/score", `{"student_id": "S-1", `+workedExample+`}`)

			Convey("Then it is proficient at 66.2", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				body := decode(w)
				So(body["student_id"], ShouldEqual, "S-1")
				So(body["learning_mastery_score"], ShouldEqual, 66.2)
				So(body["mastery_level"], ShouldEqual, 2.0)
				So(body["mastery_level_name"], ShouldEqual, "proficient")
				So(body["components"], ShouldNotBeNil)
			})
		})

		Convey("When a feature is missing", func() {
			w := do(router, "POST", "/score", `{"score_percentage": 50}`)

			Convey("Then the record is unprocessable", func() {
				So(w.Code, ShouldEqual, http.StatusUnprocessableEntity)
				So(decode(w)["code"], ShouldEqual, "invalid_feature")
			})
		})

		Convey("When the body is not JSON", func() {
			w := do(router, "POST", "/score", `not json`)

			Convey("Then it is a bad request", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				So(decode(w)["code"], ShouldEqual, "bad_request")
			})
		})

		Convey("When scoring a batch with a duplicate and a broken record", func() {
			body := `{"students": [
				{"student_id": "a", ` + workedExample + `},
				{"student_id": "a", ` + workedExample + `},
				{"student_id": "b", "score_percentage": "high"}
			]}`
			w := do(router, "POST", "/score/batch", body)

			Convey("Then each record has its own outcome", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				resp := decode(w)
				So(resp["scored"], ShouldEqual, 1.0)
				So(resp["failed"], ShouldEqual, 2.0)

				results := resp["results"].([]any)
				first := results[0].(map[string]any)
				So(first["student_id"], ShouldEqual, "a")
				So(first["mastery_level_name"], ShouldEqual, "proficient")

				second := results[1].(map[string]any)
				So(second["index"], ShouldEqual, 1.0)
				So(second["error"], ShouldContainSubstring, "duplicate student id")

				third := results[2].(map[string]any)
				So(third["student_id"], ShouldEqual, "b")
				So(third["error"], ShouldContainSubstring, "score_percentage")
			})
		})

		Convey("When the batch is empty", func() {
			w := do(router, "POST", "/score/batch", `{"students": []}`)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When classifying scores", func() {
			w := do(router, "POST", "/classify", `{"score": 76}`)
			So(w.Code, ShouldEqual, http.StatusOK)
			So(decode(w)["mastery_level_name"], ShouldEqual, "advanced")

			w = do(router, "POST", "/classify", `{"score": 101}`)
			So(w.Code, ShouldEqual, http.StatusUnprocessableEntity)
			So(decode(w)["code"], ShouldEqual, "score_out_of_range")

			w = do(router, "POST", "/classify", `{}`)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When reading stats after a request", func() {
			do(router, "POST", "/score", `{`+workedExample+`}`)
			w := do(router, "GET", "/stats", "")

			Convey("Then the request is counted", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(decode(w)["scoring_requests"], ShouldEqual, 1.0)
			})
		})

		Convey("When scraping metrics", func() {
			do(router, "GET", "/healthz", "")
			w := do(router, "GET", "/metrics", "")

			Convey("Then HTTP requests are exported", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Body.String(), ShouldContainSubstring, "xscaffold_mastery_http_requests_total")
			})
		})

		Convey("When a browser sends a preflight request", func() {
			req := httptest.NewRequest("OPTIONS", "/score", nil)
			req.Header.Set("Origin", "http://example.com")
			req.Header.Set("Access-Control-Request-Method", "POST")
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			Convey("Then CORS allows it", func() {
				So(w.Header().Get("Access-Control-Allow-Origin"), ShouldEqual, "*")
			})
		})
	})
}

type failingDeps struct{}

func (failingDeps) GetStats() map[string]interface{} { return map[string]interface{}{} }
func (failingDeps) Score(context.Context, model.FeatureVector) (service.ScoreResult, error) {
	return service.ScoreResult{}, errors.New("engine offline")
}
func (failingDeps) ScoreBatch(context.Context, []service.BatchRecord) ([]service.BatchResult, error) {
	return nil, errors.New("engine offline")
}
func (failingDeps) Classify(context.Context, float64) (model.MasteryLevel, error) {
	return 0, errors.New("engine offline")
}

func TestServer_InternalErrors(t *testing.T) {
	Convey("Given dependencies that fail unexpectedly", t, func() {
		router := api.NewServer(failingDeps{}).Router()

		Convey("Then scoring reports an internal error", func() {
			w := do(router, "POST", "/score", `{`+workedExample+`}`)
			So(w.Code, ShouldEqual, http.StatusInternalServerError)
			So(decode(w)["code"], ShouldEqual, "internal")
		})
	})
}

func TestKindErrors(t *testing.T) {
	Convey("Given a wrapped error", t, func() {
		cause := errors.New("boom")
		err := api.WrapKind("api.score", api.ErrBadRequest, cause)

		Convey("Then both the kind and the cause match", func() {
			So(errors.Is(err, api.ErrBadRequest), ShouldBeTrue)
			So(errors.Is(err, cause), ShouldBeTrue)
			So(err.Error(), ShouldEqual, "api.score: bad request: boom")
			So(api.NewKind("api.classify", api.ErrInternal).Error(), ShouldEqual, "api.classify: internal error")
		})
	})
}
