package tests

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"

	"chatterfix/cmms/services"

	"github.com/go-chi/chi/v5"
)

type httpTestRequest struct {
	api http.Handler

	method   string
	endpoint string
	headers  map[string]string
	json     interface{}
	body     io.Reader
	login    *loginInfo
}

func newHttpTestRequest(api http.Handler, method, endpoint string) *httpTestRequest {
	return &httpTestRequest{
		api:      api,
		method:   method,
		endpoint: endpoint,
		headers:  nil,
		json:     nil,
		body:     nil,
	}
}

func (r *httpTestRequest) Header(key, value string) *httpTestRequest {
	if r.headers == nil {
		r.headers = make(map[string]string)
	}
	r.headers[key] = value
	return r
}

func (r *httpTestRequest) Login(email, password string) *httpTestRequest {
	r.login = &loginInfo{Email: email, Password: password}
	return r
}

func (r *httpTestRequest) Auth(token string) *httpTestRequest {
	return r.Header("Authorization", fmt.Sprintf("Bearer %v", token))
}

func (r *httpTestRequest) Json(data interface{}) *httpTestRequest {
	r.json = data
	return r
}

func (r *httpTestRequest) Body(body io.Reader) *httpTestRequest {
	r.body = body
	return r
}

// response body will be parsed into result, passing nil indicates that no result is returned.
func (r *httpTestRequest) Do(result interface{}) error {
	if r.json != nil {
		body := new(bytes.Buffer)
		err := json.NewEncoder(body).Encode(r.json)
		if err != nil {
			return fmt.Errorf("error encoding json body for endpoint %v: %w", r.endpoint, err)
		}
		r.body = body
	}

	req := httptest.NewRequest(r.method, r.endpoint, r.body)
	if r.headers != nil {
		for k, v := range r.headers {
			req.Header.Add(k, v)
		}
	}

	if r.login != nil {
		req.SetBasicAuth(r.login.Email, r.login.Password)
	}

	w := httptest.NewRecorder()

	r.api.ServeHTTP(w, req)

	res := w.Result()
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		if res.StatusCode == http.StatusUnauthorized {
			return ErrUnauthorized
		}
		return fmt.Errorf("%v request to endpoint %v returned status %d, content '%v'", r.method, r.endpoint, res.StatusCode, w.Body.String())
	}

	if result != nil {
		err := json.NewDecoder(res.Body).Decode(result)
		if err != nil {
			return fmt.Errorf("error parsing %v response from endpoint %v: %w", r.method, r.endpoint, err)
		}
	}

	return nil
}

var ErrUnauthorized = errors.New("unauthorized")

type client struct {
	api       chi.Router
	authToken string
	userId    string
}

func (c *client) Get(endpoint string) *httpTestRequest {
	r := newHttpTestRequest(c.api, "GET", endpoint)
	if c.authToken != "" {
		return r.Auth(c.authToken)
	}
	return r
}

func (c *client) Post(endpoint string) *httpTestRequest {
	r := newHttpTestRequest(c.api, "POST", endpoint)
	if c.authToken != "" {
		return r.Auth(c.authToken)
	}
	return r
}

func (c *client) Delete(endpoint string) *httpTestRequest {
	r := newHttpTestRequest(c.api, "DELETE", endpoint)
	if c.authToken != "" {
		return r.Auth(c.authToken)
	}
	return r
}

type loginInfo struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (c *client) signup(username, email, password string) (loginInfo, error) {
	body := map[string]string{
		"email": email, "username": username, "password": password,
	}

	err := c.Post("/user/signup").Json(body).Do(nil)
	if err != nil {
		return loginInfo{}, err
	}

	return loginInfo{Email: email, Password: password}, nil
}

func (c *client) login(login loginInfo) error {
	var res map[string]string
	err := c.Get("/user/login").Login(login.Email, login.Password).Do(&res)
	if err != nil {
		return err
	}

	c.authToken = res["access_token"]
	c.userId = res["user_id"]

	return nil
}

func (c *client) addUser(username, email, password, role string) (loginInfo, error) {
	body := map[string]string{
		"email": email, "username": username, "password": password, "role": role,
	}

	err := c.Post("/user/create").Json(body).Do(nil)
	if err != nil {
		return loginInfo{}, err
	}

	return loginInfo{Email: email, Password: password}, nil
}

func (c *client) deactivateUser(userId string) error {
	return c.Delete(fmt.Sprintf("/user/%v", userId)).Do(nil)
}

func (c *client) promoteAdmin(userId string) error {
	return c.Post(fmt.Sprintf("/user/%v/admin", userId)).Do(nil)
}

func (c *client) demoteAdmin(userId string) error {
	return c.Delete(fmt.Sprintf("/user/%v/admin", userId)).Do(nil)
}

func (c *client) setRole(userId, role string) error {
	return c.Post(fmt.Sprintf("/user/%v/role", userId)).Json(map[string]string{"role": role}).Do(nil)
}

func (c *client) listUsers() ([]services.UserInfo, error) {
	var res []services.UserInfo
	err := c.Get("/user/list").Do(&res)
	return res, err
}

func (c *client) userInfo() (services.UserInfo, error) {
	var res services.UserInfo
	err := c.Get("/user/info").Do(&res)
	return res, err
}

func (c *client) createTeam(name string) (string, error) {
	body := map[string]string{"name": name}

	var res map[string]string
	err := c.Post("/team/create").Json(body).Do(&res)
	return res["team_id"], err
}

func (c *client) deleteTeam(teamId string) error {
	return c.Delete(fmt.Sprintf("/team/%v", teamId)).Do(nil)
}

func (c *client) addUserToTeam(teamId, userId string) error {
	return c.Post(fmt.Sprintf("/team/%v/users/%v", teamId, userId)).Do(nil)
}

func (c *client) removeUserFromTeam(teamId, userId string) error {
	return c.Delete(fmt.Sprintf("/team/%v/users/%v", teamId, userId)).Do(nil)
}

func (c *client) addTeamLead(teamId, userId string) error {
	return c.Post(fmt.Sprintf("/team/%v/leads/%v", teamId, userId)).Do(nil)
}

func (c *client) listTeams() ([]services.TeamInfo, error) {
	var res []services.TeamInfo
	err := c.Get("/team/list").Do(&res)
	return res, err
}

func (c *client) listTeamUsers(teamId string) ([]services.TeamUserInfo, error) {
	var res []services.TeamUserInfo
	err := c.Get(fmt.Sprintf("/team/%v/users", teamId)).Do(&res)
	return res, err
}

func (c *client) listTeamWorkOrders(teamId string) ([]services.WorkOrderInfo, error) {
	var res []services.WorkOrderInfo
	err := c.Get(fmt.Sprintf("/team/%v/workorders", teamId)).Do(&res)
	return res, err
}

func (c *client) createAsset(body map[string]interface{}) (string, error) {
	var res map[string]string
	err := c.Post("/asset/create").Json(body).Do(&res)
	return res["asset_id"], err
}

func (c *client) listAssets(query string) ([]services.AssetInfo, error) {
	var res []services.AssetInfo
	err := c.Get("/asset/list" + query).Do(&res)
	return res, err
}

func (c *client) assetInfo(assetId string) (services.AssetInfo, error) {
	var res services.AssetInfo
	err := c.Get(fmt.Sprintf("/asset/%v", assetId)).Do(&res)
	return res, err
}

func (c *client) updateAsset(assetId string, body map[string]interface{}) error {
	return c.Post(fmt.Sprintf("/asset/%v/update", assetId)).Json(body).Do(nil)
}

func (c *client) setAssetStatus(assetId, status string) error {
	return c.Post(fmt.Sprintf("/asset/%v/status", assetId)).Json(map[string]string{"status": status}).Do(nil)
}

func (c *client) retireAsset(assetId string) error {
	return c.Post(fmt.Sprintf("/asset/%v/retire", assetId)).Json(struct{}{}).Do(nil)
}

func (c *client) addReading(assetId string, reading float64) (string, error) {
	var res map[string]string
	err := c.Post(fmt.Sprintf("/asset/%v/readings", assetId)).Json(map[string]interface{}{"reading": reading}).Do(&res)
	return res["reading_id"], err
}

func (c *client) assetHealth(assetId string) (map[string]interface{}, error) {
	var res map[string]interface{}
	err := c.Get(fmt.Sprintf("/asset/%v/health", assetId)).Do(&res)
	return res, err
}

func (c *client) createWorkOrder(body map[string]interface{}) (string, error) {
	var res map[string]interface{}
	err := c.Post("/workorder/create").Json(body).Do(&res)
	if err != nil {
		return "", err
	}
	id, _ := res["work_order_id"].(string)
	return id, nil
}

func (c *client) listWorkOrders(query string) ([]services.WorkOrderInfo, error) {
	var res []services.WorkOrderInfo
	err := c.Get("/workorder/list" + query).Do(&res)
	return res, err
}

func (c *client) setWorkOrderStatus(workOrderId, status string) error {
	return c.Post(fmt.Sprintf("/workorder/%v/status", workOrderId)).Json(map[string]string{"status": status}).Do(nil)
}

func (c *client) assignWorkOrder(workOrderId string, body map[string]interface{}) error {
	return c.Post(fmt.Sprintf("/workorder/%v/assign", workOrderId)).Json(body).Do(nil)
}

func (c *client) addWorkOrderNote(workOrderId, note string) error {
	return c.Post(fmt.Sprintf("/workorder/%v/notes", workOrderId)).Json(map[string]string{"note": note}).Do(nil)
}

func (c *client) consumeParts(workOrderId, partId string, quantity int) error {
	body := map[string]interface{}{"part_id": partId, "quantity": quantity}
	return c.Post(fmt.Sprintf("/workorder/%v/parts", workOrderId)).Json(body).Do(nil)
}

func (c *client) uploadAttachment(workOrderId, filename string, content []byte) (string, error) {
	body := new(bytes.Buffer)
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return "", err
	}
	if _, err := part.Write(content); err != nil {
		return "", err
	}
	if err := writer.Close(); err != nil {
		return "", err
	}

	var res map[string]interface{}
	err = c.Post(fmt.Sprintf("/workorder/%v/attachments", workOrderId)).
		Header("Content-Type", writer.FormDataContentType()).
		Body(body).Do(&res)
	if err != nil {
		return "", err
	}
	id, _ := res["id"].(string)
	return id, nil
}

func (c *client) createPart(body map[string]interface{}) (string, error) {
	var res map[string]string
	err := c.Post("/part/create").Json(body).Do(&res)
	return res["part_id"], err
}

func (c *client) listParts(query string) ([]services.PartInfo, error) {
	var res []services.PartInfo
	err := c.Get("/part/list" + query).Do(&res)
	return res, err
}

func (c *client) partInfo(partId string) (services.PartInfo, error) {
	var res services.PartInfo
	err := c.Get(fmt.Sprintf("/part/%v", partId)).Do(&res)
	return res, err
}

func (c *client) adjustStock(partId string, delta int, reason string) (int, error) {
	body := map[string]interface{}{"delta": delta, "reason": reason}
	var res map[string]int
	err := c.Post(fmt.Sprintf("/part/%v/adjust", partId)).Json(body).Do(&res)
	return res["quantity"], err
}

func (c *client) listAdjustments(partId string) ([]services.StockAdjustmentInfo, error) {
	var res []services.StockAdjustmentInfo
	err := c.Get(fmt.Sprintf("/part/%v/adjustments", partId)).Do(&res)
	return res, err
}

func (c *client) deletePart(partId string) error {
	return c.Delete(fmt.Sprintf("/part/%v", partId)).Do(nil)
}

func (c *client) createSchedule(body map[string]interface{}) (string, error) {
	var res map[string]string
	err := c.Post("/schedule/create").Json(body).Do(&res)
	return res["schedule_id"], err
}

func (c *client) listSchedules(query string) ([]services.ScheduleInfo, error) {
	var res []services.ScheduleInfo
	err := c.Get("/schedule/list" + query).Do(&res)
	return res, err
}

func (c *client) pauseSchedule(scheduleId string) error {
	return c.Post(fmt.Sprintf("/schedule/%v/pause", scheduleId)).Json(struct{}{}).Do(nil)
}

func (c *client) deleteSchedule(scheduleId string) error {
	return c.Delete(fmt.Sprintf("/schedule/%v", scheduleId)).Do(nil)
}

type chatReply struct {
	SessionId string `json:"session_id"`
	Reply     string `json:"reply"`
	Fallback  bool   `json:"fallback"`
}

func (c *client) sendChatMessage(sessionId, message string) (chatReply, error) {
	body := map[string]interface{}{"message": message}
	if sessionId != "" {
		body["session_id"] = sessionId
	}

	var res chatReply
	err := c.Post("/chat/message").Json(body).Do(&res)
	return res, err
}

func (c *client) chatSession(sessionId string) ([]services.ChatMessageInfo, error) {
	var res []services.ChatMessageInfo
	err := c.Get(fmt.Sprintf("/chat/sessions/%v", sessionId)).Do(&res)
	return res, err
}

func (c *client) dashboard() (map[string]interface{}, error) {
	var res map[string]interface{}
	err := c.Get("/report/dashboard").Do(&res)
	return res, err
}
