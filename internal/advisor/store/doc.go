// Package store 提供投资顾问服务的向量索引层。
//
// 每次导入都会构建一个全新的 VectorIndex，并通过 IndexHolder 原子替换；
// 检索请求持有自己获取到的句柄，不受并发导入影响。
package store
