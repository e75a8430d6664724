package controllers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"bitbucket.org/mmdatafocus/spm_backend/utils"
	"github.com/gin-gonic/gin"
)

func respondAndDecode(t *testing.T, err error) (int, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	recorder := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(recorder)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

	RespondError(c, err)

	var body struct {
		Ok    bool `json:"ok"`
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(recorder.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.Ok {
		t.Fatal("error responses must carry ok=false")
	}
	return recorder.Code, body.Error.Code
}

func TestRespondError_Taxonomy(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{utils.ErrorRecordNotFound, http.StatusNotFound, "no_encontrado"},
		{utils.ErrorNotAuthorized, http.StatusForbidden, "no_autorizado"},
		{utils.ErrorNotOwner, http.StatusForbidden, "no_es_titular"},
		{utils.ErrorInvalidTransition, http.StatusConflict, "transicion_invalida"},
		{utils.ErrorAlreadyClaimed, http.StatusConflict, "ya_asignada"},
		{utils.ErrorAlreadyResolved, http.StatusConflict, "ya_resuelta"},
		{utils.ErrorIncompleteTreatment, http.StatusUnprocessableEntity, "tratamiento_incompleto"},
		{utils.NewValidationError("centro", "es obligatorio"), http.StatusBadRequest, "validacion"},
	}
	for _, c := range cases {
		status, code := respondAndDecode(t, c.err)
		if status != c.status || code != c.code {
			t.Errorf("RespondError(%v) = %d/%s, expected %d/%s", c.err, status, code, c.status, c.code)
		}
	}
}

// Lock contention is transient and must not be confused with a decided
// approval: its own code tells the client to retry, not to stop.
func TestRespondError_LockContention(t *testing.T) {
	status, code := respondAndDecode(t, utils.ErrorLockContention)
	if status != http.StatusConflict || code != "operacion_en_curso" {
		t.Fatalf("lock contention = %d/%s, expected 409/operacion_en_curso", status, code)
	}
	if _, replayCode := respondAndDecode(t, utils.ErrorAlreadyResolved); replayCode == code {
		t.Fatal("contention and resolved replays must map to distinct codes")
	}
}
