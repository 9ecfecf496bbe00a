package rpc

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/996BC/996.Gossip/crypto"
	"github.com/996BC/996.Gossip/db"
	"github.com/996BC/996.Gossip/serialize/crds"
	"github.com/996BC/996.Gossip/utils"
)

const (
	recordPath      = "/record"
	maxBatchPushNum = 40
	pushFanout      = 6
)

var (
	// RecordV1Path /v1/record
	RecordV1Path = version1Path + recordPath

	// QueryRecordViaHashV1Path GET /v1/record/query-via-hash
	QueryRecordViaHashV1Path = RecordV1Path + "/query-via-hash"

	// QueryRecordViaOriginV1Path GET /v1/record/query-via-origin
	QueryRecordViaOriginV1Path = RecordV1Path + "/query-via-origin"

	// QueryRecordViaKindV1Path GET /v1/record/query-via-kind
	QueryRecordViaKindV1Path = RecordV1Path + "/query-via-kind"

	// CountRecordV1Path GET /v1/record/count
	CountRecordV1Path = RecordV1Path + "/count"

	// PushRecordV1Path POST /v1/record/push
	PushRecordV1Path = RecordV1Path + "/push"

	recordHandlers = HTTPHandlers{
		{QueryRecordViaHashV1Path, getRecordViaHash},
		{QueryRecordViaOriginV1Path, getRecordViaOrigin},
		{QueryRecordViaKindV1Path, getRecordViaKind},
		{CountRecordV1Path, getRecordCount},
		{PushRecordV1Path, pushRecords},
	}
)

type RecordJSON struct {
	Hash      string `json:"hash"`
	Label     string `json:"label"`
	Kind      string `json:"kind"`
	Origin    string `json:"origin"`
	Wallclock uint64 `json:"wallclock"`
	Sig       string `json:"signature"`
	Raw       string `json:"raw"`
}

func (rj *RecordJSON) fromValue(hash crypto.Hash, v *crds.CrdsValue) error {
	raw, err := v.Marshal()
	if err != nil {
		return err
	}

	rj.Hash = hash.String()
	rj.Label = v.Label().String()
	rj.Kind = v.Data.Kind().String()
	rj.Origin = v.Pubkey().String()
	rj.Wallclock = v.Wallclock()
	rj.Sig = v.Signature.String()
	rj.Raw = utils.ToHex(raw)
	return nil
}

type GetRecordsResponse struct {
	Data []*RecordJSON `json:"data"`
}

func responseRecords(w http.ResponseWriter, hashes []crypto.Hash) {
	if len(hashes) == 0 {
		failedResponse("not found", w)
		return
	}

	resp := &GetRecordsResponse{}
	for _, hash := range hashes {
		v, err := db.GetValue(hash)
		if err != nil {
			failedResponse("not found", w)
			return
		}

		rj := &RecordJSON{}
		if err := rj.fromValue(hash, v); err != nil {
			logger.Warn("encode record %s failed:%v\n", hash, err)
			failedResponse("broken record", w)
			return
		}
		resp.Data = append(resp.Data, rj)
	}

	successWithDataResponse(resp, w)
}

func archiveEnabled(w http.ResponseWriter) bool {
	if !globalSvr.archive {
		failedResponse("archive disabled", w)
		return false
	}
	return true
}

/*
GET /v1/record/query-via-hash?hash=...
*/
func getRecordViaHash(w http.ResponseWriter, r *http.Request) {
	if !archiveEnabled(w) {
		return
	}
	param, ok := r.URL.Query()[GetHashParam]
	if !ok {
		badRequestResponse(w)
		return
	}

	hash, err := crypto.HashFromString(param[0])
	if err != nil {
		badRequestResponse(w)
		return
	}
	responseRecords(w, []crypto.Hash{hash})
}

/*
GET /v1/record/query-via-origin?id=...
*/
func getRecordViaOrigin(w http.ResponseWriter, r *http.Request) {
	if !archiveEnabled(w) {
		return
	}
	param, ok := r.URL.Query()[GetIDParam]
	if !ok {
		badRequestResponse(w)
		return
	}

	origin, err := crypto.PubkeyFromString(param[0])
	if err != nil {
		badRequestResponse(w)
		return
	}

	hashes, _, err := db.GetValuesViaOrigin(origin)
	if err != nil {
		failedResponse(err.Error(), w)
		return
	}
	responseRecords(w, hashes)
}

/*
GET /v1/record/query-via-kind?kind=...
*/
func getRecordViaKind(w http.ResponseWriter, r *http.Request) {
	if !archiveEnabled(w) {
		return
	}
	param, ok := r.URL.Query()[GetKindParam]
	if !ok {
		badRequestResponse(w)
		return
	}

	kind, err := crds.ParseDataKind(param[0])
	if err != nil {
		badRequestResponse(w)
		return
	}

	hashes, err := db.GetValuesViaKind(kind)
	if err != nil {
		failedResponse(err.Error(), w)
		return
	}
	responseRecords(w, hashes)
}

/*
GET /v1/record/count
*/
type CountResponse struct {
	Count uint64 `json:"count"`
}

func getRecordCount(w http.ResponseWriter, r *http.Request) {
	if !archiveEnabled(w) {
		return
	}

	count, err := db.GetCount()
	if err != nil {
		failedResponse(err.Error(), w)
		return
	}
	successWithDataResponse(&CountResponse{Count: count}, w)
}

/*
POST /v1/record/push
{
	"data": ["hex of a signed record", "..."]
}
*/
type PushRecordsReq struct {
	Data []string `json:"data"`
}

type PushRecordsResp struct {
	Hash  []string `json:"hash"`
	Peers int      `json:"peers"`
}

func pushRecords(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		badRequestResponse(w)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		badRequestResponse(w)
		return
	}

	query := &PushRecordsReq{}
	if err := json.Unmarshal(body, query); err != nil {
		badRequestResponse(w)
		return
	}
	if len(query.Data) == 0 || len(query.Data) > maxBatchPushNum {
		badRequestResponse(w)
		return
	}

	resp := &PushRecordsResp{}
	var values []*crds.CrdsValue
	for _, hexValue := range query.Data {
		raw, err := utils.FromHex(hexValue)
		if err != nil {
			badRequestResponse(w)
			return
		}
		v, err := crds.UnmarshalValue(raw)
		if err == nil {
			err = v.Check()
		}
		if err != nil {
			logger.Debug("reject pushed record:%v\n", err)
			badRequestResponse(w)
			return
		}
		hash, err := v.Hash()
		if err != nil {
			badRequestResponse(w)
			return
		}

		values = append(values, v)
		resp.Hash = append(resp.Hash, hash.String())
	}

	if globalSvr.archive {
		for _, v := range values {
			if _, err := db.PutValue(v); err != nil {
				logger.Warn("archive pushed record failed:%v\n", err)
			}
		}
	}

	for _, p := range globalSvr.node.Peers(pushFanout) {
		if err := globalSvr.node.Push(values, p.Addr); err != nil {
			logger.Info("push to %v failed:%v\n", p, err)
			continue
		}
		resp.Peers++
	}

	successWithDataResponse(resp, w)
}
