package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/996BC/996.Gossip/rpc"
)

type httpClient struct {
	serverIP   string
	serverPort string
	scheme     string
	client     *http.Client
}

func newHTTPClient(ip string, port int, scheme string) *httpClient {
	return &httpClient{
		serverIP:   ip,
		serverPort: strconv.Itoa(port),
		scheme:     scheme,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (hc *httpClient) queryPeers() error {
	peers := &rpc.GetPeersResponse{}
	handler := func() {
		for i, p := range peers.Data {
			fmt.Printf("[%d]\t%s\t%s\n", i, p.ID, p.Address)
		}
		fmt.Printf("%d peers\n", len(peers.Data))
	}
	return hc.do(http.MethodGet, rpc.QueryPeersV1Path, nil, nil, nil, peers, handler)
}

func (hc *httpClient) probe(addr string) error {
	probe := &rpc.ProbeResponse{}
	handler := func() {
		fmt.Printf("pong from %s: time=%v\n", probe.Address, time.Duration(probe.RTT)*time.Microsecond)
	}
	return hc.do(http.MethodGet, rpc.ProbePeerV1Path,
		[]string{rpc.GetAddrParam}, []string{addr}, nil, probe, handler)
}

func (hc *httpClient) queryCount() error {
	count := &rpc.CountResponse{}
	handler := func() {
		fmt.Printf("%d records\n", count.Count)
	}
	return hc.do(http.MethodGet, rpc.CountRecordV1Path, nil, nil, nil, count, handler)
}

// queryRecords runs one of the record queries, path picks which
func (hc *httpClient) queryRecords(path, key, value string) error {
	records := &rpc.GetRecordsResponse{}
	handler := func() {
		for _, r := range records.Data {
			content := "Record <%s>\n[Label] %s\n[Origin] %s\n[Wallclock] %d\n[Signature] %s\n[Raw] %s\n\n"

			fmt.Println("--------------------------------------------------------")
			fmt.Printf(content, r.Hash, r.Label, r.Origin, r.Wallclock, r.Sig, r.Raw)
		}
	}
	return hc.do(http.MethodGet, path, []string{key}, []string{value}, nil, records, handler)
}

func (hc *httpClient) pushRecords(hexValues []string) error {
	requestBody, err := json.Marshal(&rpc.PushRecordsReq{Data: hexValues})
	if err != nil {
		return err
	}

	pushed := &rpc.PushRecordsResp{}
	handler := func() {
		for _, h := range pushed.Hash {
			fmt.Printf(">>> %s\n", h)
		}
		fmt.Printf("pushed to %d peers\n", pushed.Peers)
	}
	return hc.do(http.MethodPost, rpc.PushRecordV1Path, nil, nil, requestBody, pushed, handler)
}

func (hc *httpClient) do(method, path string, key, value []string, postData []byte,
	data interface{}, handler func()) error {
	req, err := hc.genRequest(method, path, key, value, postData)
	if err != nil {
		return err
	}

	httpResp, err := hc.client.Do(req)
	if err != nil {
		return fmt.Errorf("do request err:%v", err)
	}
	defer httpResp.Body.Close()

	rpcResp, err := hc.parseResponse(httpResp, data)
	if err != nil {
		return err
	}
	return hc.responseHandle(rpcResp, handler)
}

func (hc *httpClient) genRequest(method string, path string, key, value []string, postData []byte) (*http.Request, error) {
	u := &url.URL{
		Scheme: hc.scheme,
		Host:   hc.serverIP + ":" + hc.serverPort,
		Path:   path,
	}

	q := u.Query()
	for i := 0; i < len(key); i++ {
		q.Add(key[i], value[i])
	}
	u.RawQuery = q.Encode()

	var httpBody io.Reader
	if postData != nil {
		httpBody = bytes.NewBuffer(postData)
	}

	req, err := http.NewRequest(method, u.String(), httpBody)
	if err != nil {
		return nil, fmt.Errorf("generate query failed:%v", err)
	}

	return req, nil
}

func (hc *httpClient) parseResponse(resp *http.Response, data interface{}) (*rpc.HTTPResponse, error) {
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP request failed, return:%d", resp.StatusCode)
	}

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read http body failed:%v", err)
	}

	httpResponse := rpc.ParseHTTPResponse(bodyBytes, data)
	if httpResponse == nil {
		return nil, fmt.Errorf("unmarshal response json failed")
	}

	return httpResponse, nil
}

func (hc *httpClient) responseHandle(httpResponse *rpc.HTTPResponse, f func()) error {
	switch httpResponse.Code {
	case rpc.CodeSuccess:
		f()
		return nil
	case rpc.CodeFailed:
		return fmt.Errorf("failed: %s", httpResponse.Message)
	case rpc.CodeBadRequest:
		return fmt.Errorf("bad request, please check your input")
	default:
		return fmt.Errorf("response unknown code:%d", httpResponse.Code)
	}
}
